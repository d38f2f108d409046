package engine

import (
	"math"
	"time"

	"github.com/chrissnell/sensorpipe/internal/types"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func reading(sensor, readingType string, hour int, v float64) types.Reading {
	return types.Reading{
		SensorID:    sensor,
		ReadingType: readingType,
		Timestamp:   baseTime.Add(time.Duration(hour) * time.Hour),
		Value:       types.Float(v),
		SourceFile:  "test.csv",
	}
}

func nullReading(sensor, readingType string, hour int) types.Reading {
	r := reading(sensor, readingType, hour, 0)
	r.Value = nil
	return r
}

func approxEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}
