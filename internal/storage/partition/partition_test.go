package partition

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
)

func enriched(sensor, date string, hour int, v float64) types.EnrichedReading {
	ts, _ := time.Parse("2006-01-02", date)
	return types.EnrichedReading{
		Reading: types.Reading{
			SensorID:    sensor,
			ReadingType: "temperature",
			Timestamp:   ts.Add(time.Duration(hour) * time.Hour),
			Value:       types.Float(v),
		},
		Date:     date,
		DailyAvg: v,
	}
}

func TestKeyPath(t *testing.T) {
	tests := []struct {
		key      Key
		expected string
	}{
		{Key{Date: "2025-01-01", SensorID: "s1"}, "date=2025-01-01/sensor_id=s1/part-run1.msgpack"},
		{Key{Date: "2025-01-01", SensorID: "field/north"}, "date=2025-01-01/sensor_id=field_north/part-run1.msgpack"},
		{Key{Date: "2025-01-01", SensorID: "../etc"}, "date=2025-01-01/sensor_id=__etc/part-run1.msgpack"},
	}

	for _, tt := range tests {
		if got := tt.key.Path("run1"); got != tt.expected {
			t.Errorf("Path() = %q, want %q", got, tt.expected)
		}
	}
}

func TestWriterStore(t *testing.T) {
	root := t.TempDir()
	w := New(NewFSStore(root), nil)

	batch := &storage.Batch{
		RunID: "abc",
		Readings: []types.EnrichedReading{
			enriched("s1", "2025-01-01", 0, 20),
			enriched("s2", "2025-01-01", 0, 30),
			enriched("s1", "2025-01-01", 1, 21),
			enriched("s1", "2025-01-02", 0, 22),
		},
	}

	if err := w.Store(context.Background(), batch); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	tests := []struct {
		path  string
		count int
	}{
		{"date=2025-01-01/sensor_id=s1/part-abc.msgpack", 2},
		{"date=2025-01-01/sensor_id=s2/part-abc.msgpack", 1},
		{"date=2025-01-02/sensor_id=s1/part-abc.msgpack", 1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f, err := os.Open(filepath.Join(root, filepath.FromSlash(tt.path)))
			if err != nil {
				t.Fatalf("partition not written: %v", err)
			}
			defer f.Close()

			readings, err := Decode(f)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(readings) != tt.count {
				t.Errorf("len(readings) = %d, want %d", len(readings), tt.count)
			}
		})
	}

	// A second run writes beside the first instead of replacing it.
	batch.RunID = "def"
	if err := w.Store(context.Background(), batch); err != nil {
		t.Fatalf("second Store() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, "date=2025-01-01", "sensor_id=s1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("partition directory has %d files, want 2", len(entries))
	}
}

func TestWriterStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(NewFSStore(t.TempDir()), nil)
	err := w.Store(ctx, &storage.Batch{RunID: "x", Readings: []types.EnrichedReading{enriched("s1", "2025-01-01", 0, 1)}})
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}
