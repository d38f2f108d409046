package restserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// Process runs the engine over the readings in the request body. Nothing is
// written to storage.
func (h *Handlers) Process(w http.ResponseWriter, req *http.Request) {
	data, err := responseformat.ReadBody(req)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "decode", err, nil)
		return
	}
	contentType := req.Header.Get("Content-Type")

	var body ProcessRequest
	if err := responseformat.DecodeBody(contentType, data, &body); err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "decode", err, nil)
		return
	}

	// A null value is a missing reading; an absent value key is a malformed row.
	var keys processRowKeys
	if err := responseformat.DecodeBody(contentType, data, &keys); err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "decode", err, nil)
		return
	}
	if schemaErr := keys.checkValuePresent(); schemaErr != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "schema", schemaErr, schemaErr)
		return
	}

	res, report, err := h.controller.deps.Engine.Process(body.Readings)
	if err != nil {
		var schemaErr *engine.SchemaError
		var configErr *engine.ConfigError
		switch {
		case errors.As(err, &schemaErr):
			h.formatter.WriteError(w, req, http.StatusBadRequest, "schema", err, schemaErr)
		case errors.As(err, &configErr):
			h.formatter.WriteError(w, req, http.StatusUnprocessableEntity, "config", err, configErr)
		default:
			h.controller.logger.Errorf("error processing batch: %v", err)
			h.formatter.WriteError(w, req, http.StatusInternalServerError, "internal", err, nil)
		}
		return
	}

	resp := ProcessResponse{
		RunID:    uuid.NewString(),
		Readings: res.Readings,
		Report:   report,
		Warnings: res.Warnings,
		Stats:    res.Stats,
	}
	if err := h.formatter.WriteResponse(w, req, resp, nil); err != nil {
		h.controller.logger.Errorf("error encoding process response: %v", err)
	}
}

// GetReadingTypes returns the expected ranges and calibrations in effect
func (h *Handlers) GetReadingTypes(w http.ResponseWriter, req *http.Request) {
	store := h.controller.deps.Engine.Store()

	out := []ReadingType{}
	for _, name := range store.ReadingTypes() {
		rng, err := store.Range(name)
		if err != nil {
			continue
		}
		cal := store.Calibration(name)
		out = append(out, ReadingType{
			Name:       name,
			Min:        rng.Min,
			Max:        rng.Max,
			Scale:      cal.Scale,
			Offset:     cal.Offset,
			Calibrated: store.HasCalibration(name),
		})
	}

	h.formatter.WriteResponse(w, req, out, nil)
}

// GetLatestRun returns the summary of the last pipeline run of this process
func (h *Handlers) GetLatestRun(w http.ResponseWriter, req *http.Request) {
	if h.controller.deps.Runs == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "not_found", errors.New("no pipeline runs yet"), nil)
		return
	}
	run, ok := h.controller.deps.Runs.LatestRun()
	if !ok {
		h.formatter.WriteError(w, req, http.StatusNotFound, "not_found", errors.New("no pipeline runs yet"), nil)
		return
	}
	h.formatter.WriteResponse(w, req, run, nil)
}

// Healthz reports the sinks' last write results. It returns 503 when any
// sink failed its last write.
func (h *Handlers) Healthz(w http.ResponseWriter, req *http.Request) {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if hm := h.controller.deps.Health; hm != nil {
		resp.Sinks = hm.Snapshot()
		if !hm.Healthy() {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	h.formatter.WriteStatus(w, req, status, resp, nil)
}
