package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/internal/metrics"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

const goodCSV = `sensor_id,reading_type,timestamp,value
s1,temperature,2025-01-01T00:00:00Z,20
s1,temperature,2025-01-01T01:00:00Z,21
s1,battery,2025-01-01T00:00:00Z,3.7
s1,battery,2025-01-01T01:00:00Z,
`

func testConfig(t *testing.T) *config.ConfigData {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.ConfigData{
		Pipeline: config.PipelineData{
			RawDir:       filepath.Join(dir, "raw"),
			ProcessedDir: filepath.Join(dir, "processed"),
			ReportPath:   filepath.Join(dir, "report.csv"),
			CheckpointDB: filepath.Join(dir, "checkpoint.db"),
		},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Pipeline.RawDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func openApp(t *testing.T, cfg *config.ConfigData) *App {
	t.Helper()
	a, err := New(cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func writeRaw(t *testing.T, cfg *config.ConfigData, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(cfg.Pipeline.RawDir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnce(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg, "a.csv", goodCSV)
	a := openApp(t, cfg)

	if _, ok := a.LatestRun(); ok {
		t.Fatal("LatestRun() reported a run before any ran")
	}

	summary, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if summary.Status != metrics.StatusSuccess {
		t.Errorf("status = %q", summary.Status)
	}
	if summary.InputRows != 4 || summary.OutputRows != 3 {
		t.Errorf("rows in/out = %d/%d, want 4/3", summary.InputRows, summary.OutputRows)
	}
	if len(summary.Report) != 2 {
		t.Errorf("report rows = %d, want 2", len(summary.Report))
	}

	report, err := os.ReadFile(cfg.Pipeline.ReportPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(report), "reading_type,total,pct_missing,pct_anomalous,missing_hours\n") {
		t.Errorf("unexpected report header: %q", report)
	}

	part := filepath.Join(cfg.Pipeline.ProcessedDir, "date=2025-01-01", "sensor_id=s1", "part-"+summary.RunID+".msgpack")
	if _, err := os.Stat(part); err != nil {
		t.Errorf("partition file missing: %v", err)
	}

	latest, ok := a.LatestRun()
	if !ok || latest.RunID != summary.RunID {
		t.Errorf("LatestRun() = %+v", latest)
	}

	// the file is checkpointed, so a second run has nothing to do
	second, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != metrics.StatusEmpty {
		t.Errorf("second run status = %q, want %q", second.Status, metrics.StatusEmpty)
	}
}

func TestRunOnceConfigErrorKeepsFiles(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg, "b.csv", "sensor_id,reading_type,timestamp,value\ns1,pressure,2025-01-01T00:00:00Z,1000\n")
	a := openApp(t, cfg)

	for i := 0; i < 2; i++ {
		summary, err := a.RunOnce(context.Background())
		var cfgErr *engine.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("run %d: error = %v, want ConfigError", i, err)
		}
		if summary.Status != metrics.StatusFailed {
			t.Errorf("run %d: status = %q", i, summary.Status)
		}
	}

	if _, err := os.Stat(cfg.Pipeline.ReportPath); !os.IsNotExist(err) {
		t.Errorf("report written for a failed run: %v", err)
	}
}

func TestNewEngineFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReadingTypes = []config.ReadingTypeData{{
		Name:        "co2",
		Min:         floatPtr(300),
		Max:         floatPtr(5000),
		Calibration: &config.CalibrationData{Scale: 2, Offset: 1},
	}}

	eng, err := NewEngine(cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	if got := eng.Store().Calibration("co2"); got.Scale != 2 || got.Offset != 1 {
		t.Errorf("calibration = %+v", got)
	}
	if eng.Options().Location.String() != "Asia/Kolkata" {
		t.Errorf("location = %s", eng.Options().Location)
	}
	if _, err := eng.Store().Range("temperature"); err == nil {
		t.Error("temperature should not be configured")
	}
}

func TestServeRequiresOpen(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Serve(context.Background()); err == nil {
		t.Error("Serve() on an unopened app should fail")
	}
	if _, err := a.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() on an unopened app should fail")
	}
}

func floatPtr(v float64) *float64 { return &v }
