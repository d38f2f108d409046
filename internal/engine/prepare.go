package engine

import (
	"math"
	"time"

	"github.com/chrissnell/sensorpipe/internal/types"
)

// validateSchema rejects the batch if any row lacks a sensor ID, reading type
// or timestamp.
func validateSchema(batch []types.Reading) error {
	for i, r := range batch {
		switch {
		case r.SensorID == "":
			return &SchemaError{Field: "sensor_id", Row: i}
		case r.ReadingType == "":
			return &SchemaError{Field: "reading_type", Row: i}
		case r.Timestamp.IsZero():
			return &SchemaError{Field: "timestamp", Row: i}
		}
	}
	return nil
}

// instant identifies a point in time independent of its location. Unlike
// UnixNano it is defined for every representable time.
type instant struct {
	sec  int64
	nsec int32
}

func instantOf(ts time.Time) instant {
	return instant{sec: ts.Unix(), nsec: int32(ts.Nanosecond())}
}

type rowKey struct {
	sensorID    string
	readingType string
	at          instant
	hasValue    bool
	valueBits   uint64
	sourceFile  string
}

func keyOf(r types.Reading) rowKey {
	k := rowKey{
		sensorID:    r.SensorID,
		readingType: r.ReadingType,
		at:          instantOf(r.Timestamp),
		sourceFile:  r.SourceFile,
	}
	if r.Value != nil {
		k.hasValue = true
		k.valueBits = math.Float64bits(*r.Value)
	}
	return k
}

// dedupe removes rows identical to an earlier row, keeping input order.
func dedupe(batch []types.Reading) ([]types.Reading, int) {
	seen := make(map[rowKey]struct{}, len(batch))
	out := make([]types.Reading, 0, len(batch))
	for _, r := range batch {
		k := keyOf(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, len(batch) - len(out)
}

// dropMissing removes rows whose value is null, NaN or infinite.
func dropMissing(batch []types.Reading) ([]types.Reading, int) {
	out := make([]types.Reading, 0, len(batch))
	for _, r := range batch {
		if r.Value == nil || math.IsNaN(*r.Value) || math.IsInf(*r.Value, 0) {
			continue
		}
		out = append(out, r)
	}
	return out, len(batch) - len(out)
}

// localize converts every timestamp into loc. The absolute instant is unchanged.
func localize(batch []types.Reading, loc *time.Location) {
	for i := range batch {
		batch[i].Timestamp = batch[i].Timestamp.In(loc)
	}
}
