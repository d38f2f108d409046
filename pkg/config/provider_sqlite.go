package config

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/chrissnell/sensorpipe/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationTable records which configuration schema versions are applied.
const MigrationTable = "config_schema_migrations"

// Migrations returns the embedded configuration schema migrations.
func Migrations(dbDriver string) *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", MigrationTable, dbDriver)
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the SQLite configuration database at dbPath and
// brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, Migrations("sqlite"))
	if err := migrator.MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	pipeline, err := s.GetPipelineConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}
	config.Pipeline = *pipeline

	config.ReadingTypes, err = s.GetReadingTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to load reading types: %w", err)
	}

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	config.Controllers, err = s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}

	return config, nil
}

// GetPipelineConfig assembles the pipeline settings from the key/value table
func (s *SQLiteProvider) GetPipelineConfig() (*PipelineData, error) {
	rows, err := s.db.Query(`SELECT key, value FROM pipeline_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline setting: %w", err)
		}
		settings[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pipeline := &PipelineData{}
	if len(settings) == 0 {
		return pipeline, nil
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, pipeline); err != nil {
		return nil, fmt.Errorf("invalid pipeline setting: %w", err)
	}
	return pipeline, nil
}

// GetReadingTypes returns the reading types ordered by name
func (s *SQLiteProvider) GetReadingTypes() ([]ReadingTypeData, error) {
	rows, err := s.db.Query(`
		SELECT name, min_value, max_value, cal_scale, cal_offset
		FROM reading_types
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reading types: %w", err)
	}
	defer rows.Close()

	var readingTypes []ReadingTypeData
	for rows.Next() {
		var rt ReadingTypeData
		var min, max float64
		var scale, offset sql.NullFloat64

		if err := rows.Scan(&rt.Name, &min, &max, &scale, &offset); err != nil {
			return nil, fmt.Errorf("failed to scan reading type row: %w", err)
		}
		rt.Min, rt.Max = &min, &max

		if scale.Valid || offset.Valid {
			rt.Calibration = &CalibrationData{Scale: 1.0}
			if scale.Valid {
				rt.Calibration.Scale = scale.Float64
			}
			if offset.Valid {
				rt.Calibration.Offset = offset.Float64
			}
		}

		readingTypes = append(readingTypes, rt)
	}
	return readingTypes, rows.Err()
}

// GetStorageConfig returns the enabled storage backends
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	rows, err := s.db.Query(`SELECT backend_type, config FROM storage_configs WHERE enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType, raw string
		if err := rows.Scan(&backendType, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		var target any
		switch backendType {
		case "partition":
			storage.Partition = &PartitionData{}
			target = storage.Partition
		case "timescaledb":
			storage.TimescaleDB = &TimescaleDBData{}
			target = storage.TimescaleDB
		case "influxdb":
			storage.InfluxDB = &InfluxDBData{}
			target = storage.InfluxDB
		case "kafka":
			storage.Kafka = &KafkaData{}
			target = storage.Kafka
		case "mqtt":
			storage.MQTT = &MQTTData{}
			target = storage.MQTT
		default:
			return nil, fmt.Errorf("unknown storage backend type %q", backendType)
		}

		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return nil, fmt.Errorf("invalid %s storage config: %w", backendType, err)
		}
	}
	return storage, rows.Err()
}

// GetControllers returns the enabled controllers
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	rows, err := s.db.Query(`SELECT controller_type, config FROM controller_configs WHERE enabled = 1 ORDER BY controller_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controller configs: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controllerType, raw string
		if err := rows.Scan(&controllerType, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan controller config row: %w", err)
		}

		controller := ControllerData{Type: controllerType}
		switch controllerType {
		case "rest":
			controller.RESTServer = &RESTServerData{}
			if err := json.Unmarshal([]byte(raw), controller.RESTServer); err != nil {
				return nil, fmt.Errorf("invalid rest controller config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown controller type %q", controllerType)
		}
		controllers = append(controllers, controller)
	}
	return controllers, rows.Err()
}

// SaveConfig replaces the stored configuration with config in one transaction
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"pipeline_settings", "reading_types", "storage_configs", "controller_configs"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	raw, err := json.Marshal(config.Pipeline)
	if err != nil {
		return err
	}
	var settings map[string]json.RawMessage
	if err := json.Unmarshal(raw, &settings); err != nil {
		return err
	}
	for key, value := range settings {
		if _, err := tx.Exec(`INSERT INTO pipeline_settings (key, value) VALUES (?, ?)`, key, string(value)); err != nil {
			return fmt.Errorf("failed to insert pipeline setting %s: %w", key, err)
		}
	}

	for _, rt := range config.ReadingTypes {
		if rt.Min == nil || rt.Max == nil {
			return fmt.Errorf("reading type %q has no expected range", rt.Name)
		}
		var scale, offset sql.NullFloat64
		if rt.Calibration != nil {
			scale = sql.NullFloat64{Float64: rt.Calibration.Scale, Valid: true}
			offset = sql.NullFloat64{Float64: rt.Calibration.Offset, Valid: true}
		}
		_, err := tx.Exec(`
			INSERT INTO reading_types (name, min_value, max_value, cal_scale, cal_offset)
			VALUES (?, ?, ?, ?, ?)`, rt.Name, *rt.Min, *rt.Max, scale, offset)
		if err != nil {
			return fmt.Errorf("failed to insert reading type %s: %w", rt.Name, err)
		}
	}

	backends := map[string]any{}
	if config.Storage.Partition != nil {
		backends["partition"] = config.Storage.Partition
	}
	if config.Storage.TimescaleDB != nil {
		backends["timescaledb"] = config.Storage.TimescaleDB
	}
	if config.Storage.InfluxDB != nil {
		backends["influxdb"] = config.Storage.InfluxDB
	}
	if config.Storage.Kafka != nil {
		backends["kafka"] = config.Storage.Kafka
	}
	if config.Storage.MQTT != nil {
		backends["mqtt"] = config.Storage.MQTT
	}
	for backendType, cfg := range backends {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO storage_configs (backend_type, enabled, config) VALUES (?, 1, ?)`, backendType, string(raw)); err != nil {
			return fmt.Errorf("failed to insert %s storage config: %w", backendType, err)
		}
	}

	for _, c := range config.Controllers {
		if c.RESTServer == nil {
			continue
		}
		raw, err := json.Marshal(c.RESTServer)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO controller_configs (controller_type, enabled, config) VALUES ('rest', 1, ?)`, string(raw)); err != nil {
			return fmt.Errorf("failed to insert rest controller config: %w", err)
		}
	}

	return tx.Commit()
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
