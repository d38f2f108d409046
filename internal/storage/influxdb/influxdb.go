// Package influxdb writes enriched readings and quality reports to InfluxDB 2.x.
package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

// Measurement names
const (
	ReadingsMeasurement = "sensor_readings"
	ReportMeasurement   = "data_quality"
)

// Storage is the InfluxDB sink
type Storage struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// New connects to InfluxDB and checks its health
func New(ctx context.Context, cfg *config.InfluxDBData) (*Storage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to InfluxDB: %v", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB health check failed: %s", health.Status)
	}

	return &Storage{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
	}, nil
}

func (s *Storage) Name() string {
	return "influxdb"
}

// Store writes one point per reading and one per report row
func (s *Storage) Store(ctx context.Context, b *storage.Batch) error {
	points := ReadingPoints(b.RunID, b.Readings)
	points = append(points, ReportPoints(b.RunID, b.Report, time.Now())...)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write points to InfluxDB: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	s.client.Close()
	return nil
}

// ReadingPoints converts enriched readings into points. Readings without a
// value are skipped.
func ReadingPoints(runID string, readings []types.EnrichedReading) []*write.Point {
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		if r.Value == nil {
			continue
		}
		points = append(points, influxdb2.NewPoint(
			ReadingsMeasurement,
			map[string]string{
				"sensor_id":    r.SensorID,
				"reading_type": r.ReadingType,
				"anomalous":    strconv.FormatBool(r.Anomalous),
			},
			map[string]interface{}{
				"value":            *r.Value,
				"daily_avg":        r.DailyAvg,
				"rolling_7day_avg": r.Rolling7DayAvg,
				"run_id":           runID,
			},
			r.Timestamp,
		))
	}
	return points
}

// ReportPoints converts report rows into points stamped at ts.
func ReportPoints(runID string, report []types.ReportRow, ts time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(report))
	for _, r := range report {
		points = append(points, influxdb2.NewPoint(
			ReportMeasurement,
			map[string]string{"reading_type": r.ReadingType},
			map[string]interface{}{
				"total":         r.Total,
				"pct_missing":   r.PctMissing,
				"pct_anomalous": r.PctAnomalous,
				"missing_hours": r.MissingHours,
				"run_id":        runID,
			},
			ts,
		))
	}
	return points
}
