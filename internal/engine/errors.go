package engine

import (
	"fmt"
	"math"
)

// SchemaError is returned when a batch is missing a required field. The whole
// batch is rejected.
type SchemaError struct {
	Field  string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("schema error: missing required field %q", e.Field)
	if e.Row >= 0 {
		msg = fmt.Sprintf("%s at row %d", msg, e.Row)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

// ConfigError is returned when a reading type has no expected range configured.
type ConfigError struct {
	ReadingType string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: no expected range configured for reading type %q", e.ReadingType)
}

// DegenerateGroupWarning records a reading-type group that was left uncorrected
// because its standard deviation was undefined or zero.
type DegenerateGroupWarning struct {
	ReadingType string  `json:"reading_type"`
	Count       int     `json:"count"`
	StdDev      float64 `json:"std_dev"`
}

func (w DegenerateGroupWarning) String() string {
	if w.Count < 2 {
		return fmt.Sprintf("reading type %q has %d value(s); outlier correction skipped", w.ReadingType, w.Count)
	}
	if math.IsNaN(w.StdDev) {
		return fmt.Sprintf("reading type %q has undefined standard deviation over %d values; outlier correction skipped", w.ReadingType, w.Count)
	}
	return fmt.Sprintf("reading type %q has zero standard deviation over %d values; outlier correction skipped", w.ReadingType, w.Count)
}
