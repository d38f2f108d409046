// Package types holds the record types shared by the ingest, engine, storage and controller packages.
package types

import "time"

// Reading is a single raw observation from one sensor. Value is nil when the
// source row carried no usable measurement.
type Reading struct {
	SensorID    string    `json:"sensor_id"`
	ReadingType string    `json:"reading_type"`
	Timestamp   time.Time `json:"timestamp"`
	Value       *float64  `json:"value"`
	SourceFile  string    `json:"source_file,omitempty"`
}

// HasValue reports whether the reading carries a measurement.
func (r Reading) HasValue() bool {
	return r.Value != nil
}

// EnrichedReading is a reading after correction, calibration, anomaly flagging
// and aggregation. Value holds the calibrated measurement.
type EnrichedReading struct {
	Reading
	Anomalous      bool    `json:"anomalous_reading"`
	Date           string  `json:"date"`
	DailyAvg       float64 `json:"daily_avg"`
	Rolling7DayAvg float64 `json:"rolling_7day_avg"`
}

// ReportRow is one line of the data quality report.
type ReportRow struct {
	ReadingType  string  `json:"reading_type"`
	Total        int     `json:"total"`
	PctMissing   float64 `json:"pct_missing"`
	PctAnomalous float64 `json:"pct_anomalous"`
	MissingHours int     `json:"missing_hours"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// FileStat summarizes one ingested source file.
type FileStat struct {
	Name          string              `json:"name"`
	Rows          int                 `json:"rows"`
	MissingValues int                 `json:"missing_values"`
	ByType        map[string]TypeStat `json:"by_type,omitempty"`
	Failed        bool                `json:"failed,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// TypeStat holds per reading type counts for a source file.
type TypeStat struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}
