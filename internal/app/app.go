// Package app wires ingestion, the engine, storage and the REST controller
// into pipeline runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/controllers/restserver"
	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/internal/ingest"
	"github.com/chrissnell/sensorpipe/internal/managers"
	"github.com/chrissnell/sensorpipe/internal/metrics"
	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

// App represents the main application
type App struct {
	cfg     *config.ConfigData
	logger  *zap.SugaredLogger
	engine  *engine.Engine
	metrics *metrics.Metrics

	storage    *managers.StorageManager
	checkpoint *ingest.Checkpoint
	ingester   *ingest.Ingester

	runMu    sync.Mutex
	latestMu sync.RWMutex
	latest   *types.RunSummary
}

// New creates a new application instance. Nothing is opened until Open.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) (*App, error) {
	eng, err := NewEngine(cfg, logger.Named("engine"))
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		engine:  eng,
		metrics: metrics.New(),
	}, nil
}

// NewEngine builds the engine from the configured reading types and pipeline settings.
func NewEngine(cfg *config.ConfigData, logger *zap.SugaredLogger) (*engine.Engine, error) {
	ranges := make(map[string]engine.Range, len(cfg.ReadingTypes))
	cals := make(map[string]engine.Calibration)
	for _, rt := range cfg.ReadingTypes {
		if rt.Min == nil || rt.Max == nil {
			return nil, &engine.ConfigError{ReadingType: rt.Name}
		}
		ranges[rt.Name] = engine.Range{Min: *rt.Min, Max: *rt.Max}
		if rt.Calibration != nil {
			cals[rt.Name] = engine.Calibration{Scale: rt.Calibration.Scale, Offset: rt.Calibration.Offset}
		}
	}
	store, err := engine.NewStore(ranges, cals)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Pipeline.Location()
	if err != nil {
		return nil, err
	}
	cadence, err := cfg.Pipeline.GapCadenceDuration()
	if err != nil {
		return nil, err
	}

	return engine.New(store, engine.Options{
		Location:      loc,
		ZThreshold:    cfg.Pipeline.ZThreshold,
		RollingWindow: cfg.Pipeline.RollingWindowDays,
		GapCadence:    cadence,
	}, logger), nil
}

// Open connects the storage sinks and the checkpoint store
func (a *App) Open(ctx context.Context) error {
	sm, err := managers.NewStorageManager(ctx, a.cfg, a.logger.Named("storage"))
	if err != nil {
		return err
	}

	cp, err := ingest.OpenCheckpoint(ctx, a.cfg.Pipeline.CheckpointDB)
	if err != nil {
		sm.Close()
		return err
	}

	a.storage = sm
	a.checkpoint = cp
	a.ingester = ingest.New(a.cfg.Pipeline.RawDir, a.cfg.Pipeline.Concurrency, cp, a.logger.Named("ingest"))
	return nil
}

// Close releases everything Open acquired
func (a *App) Close() error {
	var errs []error
	if a.storage != nil {
		errs = append(errs, a.storage.Close())
	}
	if a.checkpoint != nil {
		errs = append(errs, a.checkpoint.Close())
	}
	return errors.Join(errs...)
}

// Engine returns the pipeline engine
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Metrics returns the application's collectors
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// LatestRun returns the summary of the most recent run of this process
func (a *App) LatestRun() (*types.RunSummary, bool) {
	a.latestMu.RLock()
	defer a.latestMu.RUnlock()
	return a.latest, a.latest != nil
}

func (a *App) recordRun(s *types.RunSummary, status string) {
	s.Status = status
	s.FinishedAt = time.Now()
	a.metrics.ObserveRun(status, s.FinishedAt.Sub(s.StartedAt))

	a.latestMu.Lock()
	a.latest = s
	a.latestMu.Unlock()
}

// RunOnce ingests new raw files, processes them, stores the output in every
// sink and checkpoints the files. Files are checkpointed only when every sink
// succeeded. An empty ingestion is not an error.
func (a *App) RunOnce(ctx context.Context) (*types.RunSummary, error) {
	if a.ingester == nil {
		return nil, fmt.Errorf("application is not open")
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()

	summary := &types.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := a.logger.With("run_id", summary.RunID)
	logger.Info("starting data pipeline")

	batch, err := a.ingester.Ingest(ctx)
	if err != nil {
		summary.Error = err.Error()
		a.recordRun(summary, metrics.StatusFailed)
		return summary, fmt.Errorf("ingestion failed: %w", err)
	}

	summary.FilesProcessed = batch.Succeeded()
	summary.FilesFailed = len(batch.Files) - batch.Succeeded()
	summary.InputRows = len(batch.Readings)
	a.metrics.ObserveFiles(summary.FilesProcessed, summary.FilesFailed, summary.InputRows)

	if len(batch.Readings) == 0 {
		logger.Warn("no data ingested; nothing to process")
		if err := a.checkpoint.Commit(ctx, summary.RunID, batch.Files); err != nil {
			logger.Errorf("could not checkpoint empty files: %v", err)
		}
		a.recordRun(summary, metrics.StatusEmpty)
		return summary, nil
	}
	logger.Infof("ingested %d readings from %d file(s)", summary.InputRows, summary.FilesProcessed)

	res, report, err := a.engine.Process(batch.Readings)
	if err != nil {
		summary.Error = err.Error()
		a.recordRun(summary, metrics.StatusFailed)
		return summary, fmt.Errorf("transformation failed: %w", err)
	}
	a.metrics.ObserveResult(res)

	st := res.Stats
	logger.Infow("transformation complete",
		"input_rows", st.InputRows,
		"duplicates", st.Duplicates,
		"dropped_missing", st.DroppedMissing,
		"output_rows", st.OutputRows,
	)
	for _, w := range res.Warnings {
		logger.Warn(w.String())
		summary.Warnings = append(summary.Warnings, w.String())
	}
	for _, row := range report {
		logger.Infof("%s: total=%d missing=%.2f%% anomalous=%.2f%% missing_hours=%d",
			row.ReadingType, row.Total, row.PctMissing, row.PctAnomalous, row.MissingHours)
	}
	summary.OutputRows = st.OutputRows
	summary.Report = report

	err = a.storage.Store(ctx, &storage.Batch{
		RunID:     summary.RunID,
		StartedAt: summary.StartedAt,
		Readings:  res.Readings,
		Report:    report,
		Warnings:  res.Warnings,
		Files:     batch.Files,
	})
	if err != nil {
		for _, h := range a.storage.Health.Snapshot() {
			if h.RunID == summary.RunID && h.Status != "healthy" {
				a.metrics.SinkError(h.Sink)
			}
		}
		summary.Error = err.Error()
		a.recordRun(summary, metrics.StatusFailed)
		return summary, fmt.Errorf("storage failed: %w", err)
	}

	if err := a.checkpoint.Commit(ctx, summary.RunID, batch.Files); err != nil {
		summary.Error = err.Error()
		a.recordRun(summary, metrics.StatusFailed)
		return summary, err
	}

	a.recordRun(summary, metrics.StatusSuccess)
	logger.Infof("pipeline completed in %s", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	return summary, nil
}

// Serve starts the controllers and the run schedule and blocks until shutdown
func (a *App) Serve(ctx context.Context) error {
	if a.storage == nil {
		return fmt.Errorf("application is not open")
	}

	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps := restserver.Deps{
		Engine:  a.engine,
		Runs:    a,
		Health:  a.storage.Health,
		Metrics: a.metrics.Handler(),
	}
	cm, err := managers.NewControllerManager(ctx, &wg, a.cfg.Controllers, deps, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	if spec := a.cfg.Pipeline.Schedule; spec != "" {
		scheduler, err := a.schedule(ctx, spec)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			<-scheduler.Stop().Done()
		}()
		a.logger.Infof("pipeline scheduled with %q", spec)
	}

	a.logger.Info("application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}

func (a *App) schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(a.logger.Desugar().Named("cron")))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	_, err := c.AddFunc(spec, func() {
		if _, err := a.RunOnce(ctx); err != nil {
			a.logger.Errorf("scheduled run failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline schedule %q: %w", spec, err)
	}
	return c, nil
}
