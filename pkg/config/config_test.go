package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

const sampleYAML = `
pipeline:
  timezone: UTC
  raw-dir: /var/lib/sensorpipe/raw
  rolling-window-days: 5
  schedule: "@every 15m"
reading-types:
  - name: temperature
    min: -10
    max: 60
    calibration:
      scale: 1.02
      offset: -0.5
  - name: battery
    min: 2.5
    max: 4.2
storage:
  kafka:
    brokers: ["localhost:9092"]
    topic: enriched-readings
  influxdb:
    url: http://localhost:8086
    organization: farm
    bucket: sensors
controllers:
  - type: rest
    rest:
      listen-addr: 127.0.0.1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestYAMLProviderLoad(t *testing.T) {
	provider := NewYAMLProvider(writeFile(t, "config.yaml", sampleYAML))
	defer provider.Close()

	cfg, err := Load(provider)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pipeline.RawDir != "/var/lib/sensorpipe/raw" || cfg.Pipeline.RollingWindowDays != 5 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.ZThreshold != DefaultZThreshold || cfg.Pipeline.ReportPath != DefaultReportPath {
		t.Errorf("defaults not applied: %+v", cfg.Pipeline)
	}
	if len(cfg.ReadingTypes) != 2 {
		t.Fatalf("len(reading types) = %d, want 2", len(cfg.ReadingTypes))
	}
	if cfg.ReadingTypes[1].Calibration != nil {
		t.Errorf("battery calibration = %+v, want nil", cfg.ReadingTypes[1].Calibration)
	}
	if cfg.Storage.Kafka == nil || cfg.Storage.Kafka.Topic != "enriched-readings" {
		t.Errorf("kafka = %+v", cfg.Storage.Kafka)
	}
	if cfg.Storage.Partition == nil || cfg.Storage.Partition.Dir != DefaultProcessedDir {
		t.Errorf("partition = %+v", cfg.Storage.Partition)
	}
	if len(cfg.Controllers) != 1 || cfg.Controllers[0].RESTServer.Port != DefaultRESTPort {
		t.Errorf("controllers = %+v", cfg.Controllers)
	}
	if !provider.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestYAMLProviderRejectsUnknownKeys(t *testing.T) {
	provider := NewYAMLProvider(writeFile(t, "config.yaml", "pipeline:\n  timezon: UTC\n"))
	if _, err := provider.LoadConfig(); err == nil {
		t.Error("expected error for misspelled key")
	}
}

func TestDefaultsWhenNoReadingTypes(t *testing.T) {
	cfg := &ConfigData{}
	cfg.ApplyDefaults()

	if len(cfg.ReadingTypes) != 5 {
		t.Fatalf("len(reading types) = %d, want 5", len(cfg.ReadingTypes))
	}
	if cfg.Pipeline.Timezone != "Asia/Kolkata" {
		t.Errorf("timezone = %q", cfg.Pipeline.Timezone)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ConfigData)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *ConfigData) {},
		},
		{
			name:    "missing range",
			mutate:  func(c *ConfigData) { c.ReadingTypes[0].Max = nil },
			wantErr: "has no expected range",
		},
		{
			name:    "inverted range",
			mutate:  func(c *ConfigData) { c.ReadingTypes[0].Min, c.ReadingTypes[0].Max = float(5), float(1) },
			wantErr: "greater than max",
		},
		{
			name:    "duplicate type",
			mutate:  func(c *ConfigData) { c.ReadingTypes = append(c.ReadingTypes, c.ReadingTypes[0]) },
			wantErr: "more than once",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *ConfigData) { c.Pipeline.Timezone = "Mars/Olympus" },
			wantErr: "invalid timezone",
		},
		{
			name:    "bad cadence",
			mutate:  func(c *ConfigData) { c.Pipeline.GapCadence = "-1h" },
			wantErr: "gap cadence",
		},
		{
			name:    "minio without bucket",
			mutate:  func(c *ConfigData) { c.Storage.Partition = &PartitionData{Backend: "minio"} },
			wantErr: "minio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ConfigData{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	envFile := writeFile(t, ".env", "SENSORPIPE_MQTT_PASSWORD=from-dotenv\n")
	t.Setenv(EnvTimezone, "UTC")
	t.Setenv(EnvTimescaleDSN, "postgres://sensor@localhost/sensors")
	t.Setenv(EnvMQTTPassword, "")
	os.Unsetenv(EnvMQTTPassword)

	if err := LoadEnvFile(envFile); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}

	cfg := &ConfigData{Storage: StorageData{MQTT: &MQTTData{Broker: "tcp://localhost:1883"}}}
	cfg.ApplyEnvOverrides()

	if cfg.Pipeline.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", cfg.Pipeline.Timezone)
	}
	if cfg.Storage.TimescaleDB == nil || cfg.Storage.TimescaleDB.ConnectionString != "postgres://sensor@localhost/sensors" {
		t.Errorf("timescaledb = %+v", cfg.Storage.TimescaleDB)
	}
	if cfg.Storage.MQTT.Password != "from-dotenv" {
		t.Errorf("mqtt password = %q, want from-dotenv", cfg.Storage.MQTT.Password)
	}
}

func TestPipelineLocation(t *testing.T) {
	loc, err := PipelineData{Timezone: "Asia/Kolkata"}.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	if offset != 19800 {
		t.Errorf("offset = %d, want 19800", offset)
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	yamlProvider := NewYAMLProvider(writeFile(t, "config.yaml", sampleYAML))
	original, err := yamlProvider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "config.db")
	provider, err := NewSQLiteProvider(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteProvider() error = %v", err)
	}
	defer provider.Close()

	if err := provider.SaveConfig(original); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if loaded.Pipeline.Schedule != "@every 15m" || loaded.Pipeline.RollingWindowDays != 5 {
		t.Errorf("pipeline = %+v", loaded.Pipeline)
	}
	if len(loaded.ReadingTypes) != 2 || loaded.ReadingTypes[0].Name != "battery" {
		t.Fatalf("reading types = %+v", loaded.ReadingTypes)
	}
	temp := loaded.ReadingTypes[1]
	if *temp.Min != -10 || *temp.Max != 60 || temp.Calibration == nil || temp.Calibration.Scale != 1.02 {
		t.Errorf("temperature = %+v", temp)
	}
	if loaded.ReadingTypes[0].Calibration != nil {
		t.Errorf("battery calibration = %+v, want nil", loaded.ReadingTypes[0].Calibration)
	}
	if loaded.Storage.Kafka == nil || loaded.Storage.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("kafka = %+v", loaded.Storage.Kafka)
	}
	if loaded.Storage.InfluxDB == nil || loaded.Storage.InfluxDB.Bucket != "sensors" {
		t.Errorf("influxdb = %+v", loaded.Storage.InfluxDB)
	}
	if len(loaded.Controllers) != 1 || loaded.Controllers[0].RESTServer.ListenAddr != "127.0.0.1" {
		t.Errorf("controllers = %+v", loaded.Controllers)
	}

	// Reopening runs the migrations again without error.
	provider.Close()
	reopened, err := NewSQLiteProvider(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	reopened.Close()
}
