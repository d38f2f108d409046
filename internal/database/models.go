package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgtype"
	"github.com/lib/pq"

	"github.com/chrissnell/sensorpipe/internal/types"
)

// SensorReading is a row of the sensor_readings hypertable
type SensorReading struct {
	Time           time.Time `gorm:"column:time"`
	SensorID       string    `gorm:"column:sensor_id"`
	ReadingType    string    `gorm:"column:reading_type"`
	Value          float64   `gorm:"column:value"`
	Anomalous      bool      `gorm:"column:anomalous"`
	Date           string    `gorm:"column:date"`
	DailyAvg       float64   `gorm:"column:daily_avg"`
	Rolling7DayAvg float64   `gorm:"column:rolling_7day_avg"`
	SourceFile     string    `gorm:"column:source_file"`
	RunID          string    `gorm:"column:run_id"`
}

func (SensorReading) TableName() string {
	return "sensor_readings"
}

// QualityReport is a row of the data_quality_reports table
type QualityReport struct {
	RunID        string    `gorm:"column:run_id;primaryKey"`
	ReadingType  string    `gorm:"column:reading_type;primaryKey"`
	Total        int       `gorm:"column:total"`
	PctMissing   float64   `gorm:"column:pct_missing"`
	PctAnomalous float64   `gorm:"column:pct_anomalous"`
	MissingHours int       `gorm:"column:missing_hours"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (QualityReport) TableName() string {
	return "data_quality_reports"
}

// PipelineRun records one pipeline run
type PipelineRun struct {
	RunID       string         `gorm:"column:run_id;primaryKey"`
	StartedAt   time.Time      `gorm:"column:started_at"`
	StoredAt    time.Time      `gorm:"column:stored_at"`
	ReadingRows int            `gorm:"column:reading_rows"`
	SourceFiles pq.StringArray `gorm:"column:source_files;type:text[]"`
	Warnings    pgtype.JSONB   `gorm:"column:warnings;type:jsonb"`
	FileStats   pgtype.JSONB   `gorm:"column:file_stats;type:jsonb"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// NewSensorReadings converts enriched readings to rows. Readings without a
// value are skipped.
func NewSensorReadings(runID string, readings []types.EnrichedReading) []SensorReading {
	rows := make([]SensorReading, 0, len(readings))
	for _, r := range readings {
		if r.Value == nil {
			continue
		}
		rows = append(rows, SensorReading{
			Time:           r.Timestamp,
			SensorID:       r.SensorID,
			ReadingType:    r.ReadingType,
			Value:          *r.Value,
			Anomalous:      r.Anomalous,
			Date:           r.Date,
			DailyAvg:       r.DailyAvg,
			Rolling7DayAvg: r.Rolling7DayAvg,
			SourceFile:     r.SourceFile,
			RunID:          runID,
		})
	}
	return rows
}

// NewQualityReports converts report rows
func NewQualityReports(runID string, report []types.ReportRow, at time.Time) []QualityReport {
	rows := make([]QualityReport, len(report))
	for i, r := range report {
		rows[i] = QualityReport{
			RunID:        runID,
			ReadingType:  r.ReadingType,
			Total:        r.Total,
			PctMissing:   r.PctMissing,
			PctAnomalous: r.PctAnomalous,
			MissingHours: r.MissingHours,
			CreatedAt:    at,
		}
	}
	return rows
}

// JSONB marshals v into a jsonb column value
func JSONB(v any) (pgtype.JSONB, error) {
	var j pgtype.JSONB
	raw, err := json.Marshal(v)
	if err != nil {
		return j, fmt.Errorf("failed to marshal jsonb value: %w", err)
	}
	if err := j.Set(raw); err != nil {
		return j, err
	}
	return j, nil
}
