package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createReadingsTableSQL = `
CREATE TABLE IF NOT EXISTS sensor_readings (
    time timestamp WITH TIME ZONE NOT NULL,
    sensor_id text NOT NULL,
    reading_type text NOT NULL,
    value double precision NOT NULL,
    anomalous boolean NOT NULL DEFAULT false,
    date date NOT NULL,
    daily_avg double precision NULL,
    rolling_7day_avg double precision NULL,
    source_file text NULL,
    run_id text NOT NULL
);`

const createHypertableSQL = `SELECT create_hypertable('sensor_readings', 'time', if_not_exists => TRUE);`

const createReadingsIndexSQL = `
CREATE INDEX IF NOT EXISTS sensor_readings_sensor_type_time_idx
    ON sensor_readings (sensor_id, reading_type, time DESC);`

const createReportsTableSQL = `
CREATE TABLE IF NOT EXISTS data_quality_reports (
    run_id text NOT NULL,
    reading_type text NOT NULL,
    total integer NOT NULL,
    pct_missing double precision NOT NULL,
    pct_anomalous double precision NOT NULL,
    missing_hours integer NOT NULL,
    created_at timestamp WITH TIME ZONE NOT NULL DEFAULT now(),
    PRIMARY KEY (run_id, reading_type)
);`

const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id text PRIMARY KEY,
    started_at timestamp WITH TIME ZONE NOT NULL,
    stored_at timestamp WITH TIME ZONE NOT NULL,
    reading_rows integer NOT NULL,
    source_files text[] NOT NULL DEFAULT '{}',
    warnings jsonb NULL,
    file_stats jsonb NULL
);`

// setupStatements run in order when the sink starts.
var setupStatements = []struct {
	name string
	sql  string
}{
	{"TimescaleDB extension", createExtensionSQL},
	{"sensor_readings table", createReadingsTableSQL},
	{"sensor_readings hypertable", createHypertableSQL},
	{"sensor_readings index", createReadingsIndexSQL},
	{"data_quality_reports table", createReportsTableSQL},
	{"pipeline_runs table", createRunsTableSQL},
}
