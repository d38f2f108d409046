package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetPipelineConfig() (*PipelineData, error)
	GetReadingTypes() ([]ReadingTypeData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Pipeline     PipelineData      `json:"pipeline" yaml:"pipeline"`
	ReadingTypes []ReadingTypeData `json:"reading_types,omitempty" yaml:"reading-types,omitempty"`
	Storage      StorageData       `json:"storage,omitempty" yaml:"storage,omitempty"`
	Controllers  []ControllerData  `json:"controllers,omitempty" yaml:"controllers,omitempty"`
}

// PipelineData holds the settings of the batch pipeline
type PipelineData struct {
	Timezone          string  `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	RawDir            string  `json:"raw_dir,omitempty" yaml:"raw-dir,omitempty"`
	ProcessedDir      string  `json:"processed_dir,omitempty" yaml:"processed-dir,omitempty"`
	ReportPath        string  `json:"report_path,omitempty" yaml:"report-path,omitempty"`
	CheckpointDB      string  `json:"checkpoint_db,omitempty" yaml:"checkpoint-db,omitempty"`
	ZThreshold        float64 `json:"z_threshold,omitempty" yaml:"z-threshold,omitempty"`
	RollingWindowDays int     `json:"rolling_window_days,omitempty" yaml:"rolling-window-days,omitempty"`
	GapCadence        string  `json:"gap_cadence,omitempty" yaml:"gap-cadence,omitempty"`
	Schedule          string  `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Concurrency       int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// ReadingTypeData holds the expected range and optional calibration of a reading type
type ReadingTypeData struct {
	Name        string           `json:"name" yaml:"name"`
	Min         *float64         `json:"min" yaml:"min"`
	Max         *float64         `json:"max" yaml:"max"`
	Calibration *CalibrationData `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// CalibrationData holds affine calibration coefficients
type CalibrationData struct {
	Scale  float64 `json:"scale" yaml:"scale"`
	Offset float64 `json:"offset" yaml:"offset"`
}

// StorageData holds the configuration for the storage sinks. More than one
// sink can be used simultaneously.
type StorageData struct {
	Partition   *PartitionData   `json:"partition,omitempty" yaml:"partition,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
	InfluxDB    *InfluxDBData    `json:"influxdb,omitempty" yaml:"influxdb,omitempty"`
	Kafka       *KafkaData       `json:"kafka,omitempty" yaml:"kafka,omitempty"`
	MQTT        *MQTTData        `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// PartitionData configures the date/sensor partitioned writer. Backend is
// "filesystem" (default) or "minio".
type PartitionData struct {
	Backend string     `json:"backend,omitempty" yaml:"backend,omitempty"`
	Dir     string     `json:"dir,omitempty" yaml:"dir,omitempty"`
	MinIO   *MinIOData `json:"minio,omitempty" yaml:"minio,omitempty"`
}

type MinIOData struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access-key"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret-key,omitempty"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	UseSSL    bool   `json:"use_ssl,omitempty" yaml:"use-ssl,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection-string"`
}

type InfluxDBData struct {
	URL          string `json:"url" yaml:"url"`
	Token        string `json:"token,omitempty" yaml:"token,omitempty"`
	Organization string `json:"organization" yaml:"organization"`
	Bucket       string `json:"bucket" yaml:"bucket"`
}

type KafkaData struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type MQTTData struct {
	Broker    string `json:"broker" yaml:"broker"`
	ClientID  string `json:"client_id,omitempty" yaml:"client-id,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	BaseTopic string `json:"base_topic,omitempty" yaml:"base-topic,omitempty"`
	QoS       byte   `json:"qos,omitempty" yaml:"qos,omitempty"`
}

// ControllerData holds the configuration for the controllers
type ControllerData struct {
	Type       string          `json:"type,omitempty" yaml:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty" yaml:"rest,omitempty"`
}

type RESTServerData struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen-addr,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
}
