package managers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/controllers/restserver"
	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

type fakeSink struct {
	name   string
	err    error
	calls  atomic.Int32
	closed bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Store(ctx context.Context, b *storage.Batch) error {
	f.calls.Add(1)
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func newTestManager(sinks ...storage.Sink) *StorageManager {
	s := &StorageManager{Health: storage.NewHealthManager(), logger: zap.NewNop().Sugar()}
	for _, sink := range sinks {
		s.AddSink(sink)
	}
	return s
}

func TestStoreFansOut(t *testing.T) {
	good := &fakeSink{name: "good"}
	other := &fakeSink{name: "other"}
	bad := &fakeSink{name: "bad", err: errors.New("disk full")}
	s := newTestManager(good, bad, other)

	err := s.Store(context.Background(), &storage.Batch{RunID: "r1"})
	if err == nil {
		t.Fatal("Store() error = nil, want error from failing sink")
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Errorf("got %d errors, want 1", n)
	}

	for _, f := range []*fakeSink{good, bad, other} {
		if f.calls.Load() != 1 {
			t.Errorf("%s called %d times, want 1", f.name, f.calls.Load())
		}
	}

	if s.Health.Healthy() {
		t.Error("Healthy() = true with a failing sink")
	}
	h, ok := s.Health.GetHealth("good")
	if !ok || h.Status != "healthy" || h.RunID != "r1" {
		t.Errorf("good health = %+v", h)
	}
	h, _ = s.Health.GetHealth("bad")
	if h.Status != "unhealthy" || h.Error != "disk full" {
		t.Errorf("bad health = %+v", h)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !good.closed || !bad.closed {
		t.Error("sinks not closed")
	}
}

func TestNewStorageManagerLocalSinks(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ConfigData{
		Pipeline: config.PipelineData{ReportPath: filepath.Join(dir, "report.csv")},
		Storage: config.StorageData{
			Partition: &config.PartitionData{Dir: filepath.Join(dir, "processed")},
		},
	}

	s, err := NewStorageManager(context.Background(), cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewStorageManager() error = %v", err)
	}
	defer s.Close()

	if len(s.Sinks) != 2 {
		t.Fatalf("got %d sinks, want 2", len(s.Sinks))
	}

	v := 21.5
	batch := &storage.Batch{
		RunID: "run-1",
		Readings: []types.EnrichedReading{{
			Reading: types.Reading{SensorID: "s1", ReadingType: "temperature", Value: &v},
			Date:    "2024-01-01",
		}},
		Report: []types.ReportRow{{ReadingType: "temperature", Total: 1}},
	}
	if err := s.Store(context.Background(), batch); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if _, err := os.Stat(cfg.Pipeline.ReportPath); err != nil {
		t.Errorf("report not written: %v", err)
	}
	part := filepath.Join(dir, "processed", "date=2024-01-01", "sensor_id=s1", "part-run-1.msgpack")
	if _, err := os.Stat(part); err != nil {
		t.Errorf("partition not written: %v", err)
	}
}

func TestNewStorageManagerUnknownBackend(t *testing.T) {
	cfg := &config.ConfigData{
		Pipeline: config.PipelineData{ReportPath: filepath.Join(t.TempDir(), "r.csv")},
		Storage:  config.StorageData{Partition: &config.PartitionData{Backend: "tape"}},
	}
	if _, err := NewStorageManager(context.Background(), cfg, zap.NewNop().Sugar()); err == nil {
		t.Error("expected error for unknown partition backend")
	}
}

func TestNewControllerManagerUnknownType(t *testing.T) {
	_, err := NewControllerManager(context.Background(), nil, []config.ControllerData{{Type: "wunderground"}}, restserver.Deps{}, zap.NewNop().Sugar())
	if err == nil {
		t.Error("expected error for unknown controller type")
	}
}
