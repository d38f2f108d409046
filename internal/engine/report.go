package engine

import (
	"math"
	"sort"
	"time"

	"github.com/chrissnell/sensorpipe/internal/types"
)

// DefaultGapCadence is the expected interval between consecutive readings.
const DefaultGapCadence = time.Hour

type typeSummary struct {
	total     int
	missing   int
	anomalous int
}

// BuildReport summarizes enriched readings per reading type. Missing intervals
// are counted per (sensor, type) series against a grid anchored at the
// series' earliest timestamp and summed across sensors.
func BuildReport(rows []types.EnrichedReading, cadence time.Duration) []types.ReportRow {
	if cadence <= 0 {
		cadence = DefaultGapCadence
	}

	summaries := make(map[string]*typeSummary)
	series := make(map[seriesKey][]time.Time)

	for _, r := range rows {
		s, ok := summaries[r.ReadingType]
		if !ok {
			s = &typeSummary{}
			summaries[r.ReadingType] = s
		}
		s.total++
		if r.Value == nil || math.IsNaN(*r.Value) {
			s.missing++
		}
		if r.Anomalous {
			s.anomalous++
		}

		sk := seriesKey{sensorID: r.SensorID, readingType: r.ReadingType}
		series[sk] = append(series[sk], r.Timestamp)
	}

	gaps := make(map[string]int)
	for sk, ts := range series {
		gaps[sk.readingType] += CountMissingIntervals(ts, cadence)
	}

	report := make([]types.ReportRow, 0, len(summaries))
	for name, s := range summaries {
		report = append(report, types.ReportRow{
			ReadingType:  name,
			Total:        s.total,
			PctMissing:   float64(s.missing) * 100.0 / float64(s.total),
			PctAnomalous: float64(s.anomalous) * 100.0 / float64(s.total),
			MissingHours: gaps[name],
		})
	}
	sort.Slice(report, func(i, j int) bool {
		return report[i].ReadingType < report[j].ReadingType
	})
	return report
}

// CountMissingIntervals returns how many instants of the grid min, min+cadence,
// ... up to max have no exactly matching timestamp.
func CountMissingIntervals(timestamps []time.Time, cadence time.Duration) int {
	if len(timestamps) == 0 || cadence <= 0 {
		return 0
	}

	actual := make(map[instant]struct{}, len(timestamps))
	first, last := timestamps[0], timestamps[0]
	for _, ts := range timestamps {
		actual[instantOf(ts)] = struct{}{}
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}

	missing := 0
	for t := first; !t.After(last); t = t.Add(cadence) {
		if _, ok := actual[instantOf(t)]; !ok {
			missing++
		}
	}
	return missing
}
