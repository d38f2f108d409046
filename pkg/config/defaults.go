package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Pipeline defaults
const (
	DefaultTimezone          = "Asia/Kolkata"
	DefaultRawDir            = "data/raw"
	DefaultProcessedDir      = "data/processed"
	DefaultReportPath        = "data/data_quality_report.csv"
	DefaultCheckpointDB      = "data/checkpoint.db"
	DefaultZThreshold        = 3.0
	DefaultRollingWindowDays = 7
	DefaultGapCadence        = "1h"
	DefaultConcurrency       = 4
	DefaultRESTPort          = 8080
)

// Environment variables that override file settings
const (
	EnvTimezone       = "SENSORPIPE_TIMEZONE"
	EnvTimescaleDSN   = "SENSORPIPE_TIMESCALEDB_DSN"
	EnvInfluxToken    = "SENSORPIPE_INFLUXDB_TOKEN"
	EnvMinIOSecretKey = "SENSORPIPE_MINIO_SECRET_KEY"
	EnvMQTTPassword   = "SENSORPIPE_MQTT_PASSWORD"
)

func float(v float64) *float64 { return &v }

// DefaultReadingTypes returns the built-in reading types used when none are configured
func DefaultReadingTypes() []ReadingTypeData {
	return []ReadingTypeData{
		{Name: "battery", Min: float(2.5), Max: float(4.2), Calibration: &CalibrationData{Scale: 1.0, Offset: 0.0}},
		{Name: "humidity", Min: float(0), Max: float(100), Calibration: &CalibrationData{Scale: 0.98, Offset: 1.0}},
		{Name: "light_intensity", Min: float(0), Max: float(2000), Calibration: &CalibrationData{Scale: 1.0, Offset: 0.0}},
		{Name: "soil_moisture", Min: float(0), Max: float(100), Calibration: &CalibrationData{Scale: 1.0, Offset: 0.0}},
		{Name: "temperature", Min: float(-10), Max: float(60), Calibration: &CalibrationData{Scale: 1.02, Offset: -0.5}},
	}
}

// ApplyDefaults fills unset settings
func (c *ConfigData) ApplyDefaults() {
	p := &c.Pipeline
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.RawDir == "" {
		p.RawDir = DefaultRawDir
	}
	if p.ProcessedDir == "" {
		p.ProcessedDir = DefaultProcessedDir
	}
	if p.ReportPath == "" {
		p.ReportPath = DefaultReportPath
	}
	if p.CheckpointDB == "" {
		p.CheckpointDB = DefaultCheckpointDB
	}
	if p.ZThreshold <= 0 {
		p.ZThreshold = DefaultZThreshold
	}
	if p.RollingWindowDays <= 0 {
		p.RollingWindowDays = DefaultRollingWindowDays
	}
	if p.GapCadence == "" {
		p.GapCadence = DefaultGapCadence
	}
	if p.Concurrency <= 0 {
		p.Concurrency = DefaultConcurrency
	}

	if len(c.ReadingTypes) == 0 {
		c.ReadingTypes = DefaultReadingTypes()
	}

	if c.Storage.Partition == nil {
		c.Storage.Partition = &PartitionData{}
	}
	if c.Storage.Partition.Backend == "" {
		c.Storage.Partition.Backend = "filesystem"
	}
	if c.Storage.Partition.Dir == "" {
		c.Storage.Partition.Dir = p.ProcessedDir
	}

	for i := range c.Controllers {
		if rs := c.Controllers[i].RESTServer; rs != nil && rs.Port == 0 {
			rs.Port = DefaultRESTPort
		}
	}
}

// Validate checks the configuration for errors that would stop a pipeline run
func (c *ConfigData) Validate() error {
	var errs []error

	if _, err := c.Pipeline.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Pipeline.GapCadenceDuration(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool)
	for _, rt := range c.ReadingTypes {
		switch {
		case rt.Name == "":
			errs = append(errs, errors.New("reading type with empty name"))
		case seen[rt.Name]:
			errs = append(errs, fmt.Errorf("reading type %q configured more than once", rt.Name))
		case rt.Min == nil || rt.Max == nil:
			errs = append(errs, fmt.Errorf("reading type %q has no expected range", rt.Name))
		case *rt.Min > *rt.Max:
			errs = append(errs, fmt.Errorf("reading type %q has min %v greater than max %v", rt.Name, *rt.Min, *rt.Max))
		}
		seen[rt.Name] = true
	}

	if p := c.Storage.Partition; p != nil {
		switch p.Backend {
		case "", "filesystem":
		case "minio":
			if p.MinIO == nil || p.MinIO.Endpoint == "" || p.MinIO.Bucket == "" {
				errs = append(errs, errors.New("minio partition backend needs an endpoint and a bucket"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported partition backend %q", p.Backend))
		}
	}

	if k := c.Storage.Kafka; k != nil && (len(k.Brokers) == 0 || k.Topic == "") {
		errs = append(errs, errors.New("kafka storage needs brokers and a topic"))
	}

	return errors.Join(errs...)
}

// Location resolves the working time zone
func (p PipelineData) Location() (*time.Location, error) {
	name := p.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// GapCadenceDuration parses the expected reading cadence
func (p PipelineData) GapCadenceDuration() (time.Duration, error) {
	s := p.GapCadence
	if s == "" {
		s = DefaultGapCadence
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid gap cadence %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("gap cadence must be positive, got %s", s)
	}
	return d, nil
}

// LoadEnvFile loads variables from a dotenv file into the process environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides replaces secrets and the time zone with values from the
// environment when set
func (c *ConfigData) ApplyEnvOverrides() {
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Pipeline.Timezone = v
	}
	if v := os.Getenv(EnvTimescaleDSN); v != "" {
		if c.Storage.TimescaleDB == nil {
			c.Storage.TimescaleDB = &TimescaleDBData{}
		}
		c.Storage.TimescaleDB.ConnectionString = v
	}
	if v := os.Getenv(EnvInfluxToken); v != "" && c.Storage.InfluxDB != nil {
		c.Storage.InfluxDB.Token = v
	}
	if v := os.Getenv(EnvMinIOSecretKey); v != "" && c.Storage.Partition != nil && c.Storage.Partition.MinIO != nil {
		c.Storage.Partition.MinIO.SecretKey = v
	}
	if v := os.Getenv(EnvMQTTPassword); v != "" && c.Storage.MQTT != nil {
		c.Storage.MQTT.Password = v
	}
}

// Load reads the configuration from provider, then applies environment
// overrides and defaults and validates the result
func Load(provider ConfigProvider) (*ConfigData, error) {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
