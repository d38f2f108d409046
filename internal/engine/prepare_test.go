package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/sensorpipe/internal/types"
)

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *types.Reading)
		wantField string
	}{
		{"complete row", func(r *types.Reading) {}, ""},
		{"missing sensor id", func(r *types.Reading) { r.SensorID = "" }, "sensor_id"},
		{"missing reading type", func(r *types.Reading) { r.ReadingType = "" }, "reading_type"},
		{"missing timestamp", func(r *types.Reading) { r.Timestamp = time.Time{} }, "timestamp"},
		{"missing value is not a schema error", func(r *types.Reading) { r.Value = nil }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := []types.Reading{reading("s1", "temperature", 0, 20), reading("s1", "temperature", 1, 21)}
			tt.mutate(&batch[1])

			err := validateSchema(batch)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected *SchemaError, got %v", err)
			}
			if schemaErr.Field != tt.wantField || schemaErr.Row != 1 {
				t.Errorf("SchemaError = %+v, want field %q at row 1", schemaErr, tt.wantField)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	batch := []types.Reading{
		reading("s1", "temperature", 0, 20),
		reading("s1", "temperature", 0, 20),
		reading("s1", "temperature", 0, 21),
		nullReading("s1", "humidity", 0),
		nullReading("s1", "humidity", 0),
		reading("s2", "temperature", 0, 20),
	}

	out, removed := dedupe(batch)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	if *out[1].Value != 21 || out[2].Value != nil || out[3].SensorID != "s2" {
		t.Errorf("dedupe did not keep first occurrences in order: %+v", out)
	}
}

func TestDedupeSameInstantDifferentZone(t *testing.T) {
	a := reading("s1", "temperature", 5, 20)
	b := a
	b.Timestamp = a.Timestamp.In(time.FixedZone("IST", 19800))

	out, removed := dedupe([]types.Reading{a, b})
	if removed != 1 || len(out) != 1 {
		t.Errorf("expected the same instant in another zone to be a duplicate, got %d rows", len(out))
	}
}

func TestDropMissing(t *testing.T) {
	batch := []types.Reading{
		reading("s1", "temperature", 0, 20),
		nullReading("s1", "temperature", 1),
		reading("s1", "temperature", 2, math.NaN()),
		reading("s1", "temperature", 3, 22),
		reading("s1", "temperature", 4, math.Inf(1)),
		reading("s1", "temperature", 5, math.Inf(-1)),
	}

	out, dropped := dropMissing(batch)
	if dropped != 4 {
		t.Errorf("dropped = %d, want 4", dropped)
	}
	if len(out) != 2 || *out[0].Value != 20 || *out[1].Value != 22 {
		t.Errorf("unexpected rows after drop: %+v", out)
	}
}

func TestDedupeDistantTimestamps(t *testing.T) {
	// 2^64ns apart, so both wrap to the same UnixNano.
	a := reading("s1", "temperature", 0, 20)
	a.Timestamp = time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a
	for i := 0; i < 4; i++ {
		b.Timestamp = b.Timestamp.Add(1 << 62)
	}
	if a.Timestamp.UnixNano() != b.Timestamp.UnixNano() {
		t.Fatalf("test timestamps should share a UnixNano value")
	}

	out, removed := dedupe([]types.Reading{a, b})
	if removed != 0 || len(out) != 2 {
		t.Errorf("readings centuries apart were merged: removed = %d", removed)
	}
}
