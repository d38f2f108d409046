package restserver

import (
	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
)

// ProcessRequest is the body of POST /api/v1/process
type ProcessRequest struct {
	Readings []types.Reading `json:"readings"`
}

// processRowKeys holds the request rows as raw maps so an absent key can be
// told apart from an explicit null.
type processRowKeys struct {
	Readings []map[string]any `json:"readings"`
}

// checkValuePresent returns a *engine.SchemaError for the first row without a
// value key.
func (k processRowKeys) checkValuePresent() *engine.SchemaError {
	for i, row := range k.Readings {
		if _, ok := row["value"]; !ok {
			return &engine.SchemaError{Field: "value", Row: i, Reason: "key not present"}
		}
	}
	return nil
}

// ProcessResponse carries the output of an ad-hoc engine run
type ProcessResponse struct {
	RunID    string                          `json:"run_id"`
	Readings []types.EnrichedReading         `json:"readings"`
	Report   []types.ReportRow               `json:"report"`
	Warnings []engine.DegenerateGroupWarning `json:"warnings"`
	Stats    engine.Stats                    `json:"stats"`
}

// ReadingType is one entry of the configuration store
type ReadingType struct {
	Name       string  `json:"name"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Scale      float64 `json:"scale"`
	Offset     float64 `json:"offset"`
	Calibrated bool    `json:"calibrated"`
}

// HealthResponse is returned by /healthz
type HealthResponse struct {
	Status string               `json:"status"`
	Sinks  []storage.SinkHealth `json:"sinks,omitempty"`
}
