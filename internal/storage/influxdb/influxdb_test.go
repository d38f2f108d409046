package influxdb

import (
	"testing"
	"time"

	"github.com/chrissnell/sensorpipe/internal/types"
)

func TestReadingPoints(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := []types.EnrichedReading{
		{Reading: types.Reading{SensorID: "s1", ReadingType: "humidity", Timestamp: ts, Value: types.Float(50)}, Anomalous: true, DailyAvg: 49},
		{Reading: types.Reading{SensorID: "s1", ReadingType: "humidity", Timestamp: ts}},
	}

	points := ReadingPoints("run-1", readings)
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(points))
	}

	p := points[0]
	if p.Name() != ReadingsMeasurement || !p.Time().Equal(ts) {
		t.Errorf("point = %s at %v", p.Name(), p.Time())
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["sensor_id"] != "s1" || tags["reading_type"] != "humidity" || tags["anomalous"] != "true" {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["value"] != 50.0 || fields["daily_avg"] != 49.0 || fields["run_id"] != "run-1" {
		t.Errorf("fields = %v", fields)
	}
}

func TestReportPoints(t *testing.T) {
	ts := time.Now()
	points := ReportPoints("run-1", []types.ReportRow{{ReadingType: "battery", Total: 3}, {ReadingType: "humidity", Total: 4}}, ts)
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[1].Name() != ReportMeasurement || points[1].TagList()[0].Value != "humidity" {
		t.Errorf("second point = %s %v", points[1].Name(), points[1].TagList())
	}
}
