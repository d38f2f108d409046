// Package engine cleans, calibrates, flags and aggregates batches of sensor
// readings and builds the data quality report for them. It performs no I/O.
package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/types"
)

// Options tunes a pipeline run. Zero values fall back to the defaults.
type Options struct {
	Location      *time.Location
	ZThreshold    float64
	RollingWindow int
	GapCadence    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.ZThreshold <= 0 {
		o.ZThreshold = DefaultZThreshold
	}
	if o.RollingWindow < 1 {
		o.RollingWindow = DefaultRollingWindow
	}
	if o.GapCadence <= 0 {
		o.GapCadence = DefaultGapCadence
	}
	return o
}

// Stats counts what happened to a batch on its way through Transform.
type Stats struct {
	InputRows      int            `json:"input_rows"`
	Duplicates     int            `json:"duplicates"`
	DroppedMissing int            `json:"dropped_missing"`
	OutputRows     int            `json:"output_rows"`
	Corrected      map[string]int `json:"corrected"`
	Anomalous      map[string]int `json:"anomalous"`
}

// Result is the output of Transform.
type Result struct {
	Readings []types.EnrichedReading
	Warnings []DegenerateGroupWarning
	Stats    Stats
}

// Engine runs the transform and report stages against a fixed Store.
type Engine struct {
	store  *Store
	opts   Options
	logger *zap.SugaredLogger
}

// New creates an Engine. A nil logger discards output.
func New(store *Store, opts Options, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Store returns the configuration store the engine was built with.
func (e *Engine) Store() *Store {
	return e.store
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Transform validates the batch, removes duplicates and missing values,
// corrects outliers, calibrates, flags anomalies and computes the daily and
// rolling averages. A *SchemaError or *ConfigError aborts the batch with no
// partial output. The input slice is not modified.
func (e *Engine) Transform(batch []types.Reading) (*Result, error) {
	if err := validateSchema(batch); err != nil {
		return nil, err
	}
	if err := e.store.Check(readingTypesOf(batch)); err != nil {
		return nil, err
	}

	res := &Result{
		Stats: Stats{
			InputRows: len(batch),
			Corrected: make(map[string]int),
			Anomalous: make(map[string]int),
		},
	}

	rows, dups := dedupe(batch)
	res.Stats.Duplicates = dups
	rows, dropped := dropMissing(rows)
	res.Stats.DroppedMissing = dropped
	localize(rows, e.opts.Location)

	res.Warnings = e.correct(rows, &res.Stats)

	enriched := make([]types.EnrichedReading, len(rows))
	for i, r := range rows {
		v := Calibrate(*r.Value, e.store.Calibration(r.ReadingType))
		anomalous, err := e.store.IsAnomalous(r.ReadingType, v)
		if err != nil {
			return nil, err
		}
		if anomalous {
			res.Stats.Anomalous[r.ReadingType]++
		}
		r.Value = &v
		enriched[i] = types.EnrichedReading{Reading: r, Anomalous: anomalous}
	}

	aggregate(enriched, e.opts.RollingWindow)

	res.Readings = enriched
	res.Stats.OutputRows = len(enriched)
	return res, nil
}

// correct runs the outlier corrector over each reading-type group and writes
// the corrected values back into rows.
func (e *Engine) correct(rows []types.Reading, stats *Stats) []DegenerateGroupWarning {
	groups := make(map[string][]int)
	for i, r := range rows {
		groups[r.ReadingType] = append(groups[r.ReadingType], i)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	c := Corrector{Threshold: e.opts.ZThreshold}
	var warnings []DegenerateGroupWarning

	for _, name := range names {
		idx := groups[name]
		values := make([]float64, len(idx))
		for j, i := range idx {
			values[j] = *rows[i].Value
		}

		n, warn := c.CorrectGroup(name, values)
		if warn != nil {
			e.logger.Warnw("outlier correction skipped", "reading_type", name, "count", warn.Count, "std_dev", warn.StdDev)
			warnings = append(warnings, *warn)
			continue
		}
		if n > 0 {
			e.logger.Debugf("corrected %d outlier(s) for reading type %s", n, name)
		}
		stats.Corrected[name] = n

		for j, i := range idx {
			v := values[j]
			rows[i].Value = &v
		}
	}
	return warnings
}

// Report builds the data quality report for enriched readings.
func (e *Engine) Report(rows []types.EnrichedReading) []types.ReportRow {
	return BuildReport(rows, e.opts.GapCadence)
}

// Process runs Transform followed by Report.
func (e *Engine) Process(batch []types.Reading) (*Result, []types.ReportRow, error) {
	res, err := e.Transform(batch)
	if err != nil {
		return nil, nil, err
	}
	return res, e.Report(res.Readings), nil
}

func readingTypesOf(batch []types.Reading) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, r := range batch {
		if _, ok := seen[r.ReadingType]; ok {
			continue
		}
		seen[r.ReadingType] = struct{}{}
		names = append(names, r.ReadingType)
	}
	return names
}
