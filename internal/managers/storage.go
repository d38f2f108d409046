package managers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/storage/influxdb"
	"github.com/chrissnell/sensorpipe/internal/storage/kafka"
	"github.com/chrissnell/sensorpipe/internal/storage/mqtt"
	"github.com/chrissnell/sensorpipe/internal/storage/partition"
	"github.com/chrissnell/sensorpipe/internal/storage/reportcsv"
	"github.com/chrissnell/sensorpipe/internal/storage/timescaledb"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

// StorageManager holds our active storage sinks and fans each batch out to
// all of them
type StorageManager struct {
	Sinks  []storage.Sink
	Health *storage.HealthManager
	logger *zap.SugaredLogger
}

// NewStorageManager creates a StorageManager populated with all configured sinks.
// The report CSV sink is always present.
func NewStorageManager(ctx context.Context, cfg *config.ConfigData, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{
		Health: storage.NewHealthManager(),
		logger: logger,
	}

	s.AddSink(reportcsv.New(cfg.Pipeline.ReportPath, logger))

	if p := cfg.Storage.Partition; p != nil {
		if err := s.addPartition(ctx, p); err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add partition storage backend: %w", err)
		}
	}

	if ts := cfg.Storage.TimescaleDB; ts != nil && ts.ConnectionString != "" {
		sink, err := timescaledb.New(ctx, ts.ConnectionString)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		s.AddSink(sink)
	}

	if ic := cfg.Storage.InfluxDB; ic != nil && ic.URL != "" {
		sink, err := influxdb.New(ctx, ic)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add InfluxDB storage backend: %w", err)
		}
		s.AddSink(sink)
	}

	if kc := cfg.Storage.Kafka; kc != nil && len(kc.Brokers) > 0 {
		s.AddSink(kafka.New(kc))
	}

	if mc := cfg.Storage.MQTT; mc != nil && mc.Broker != "" {
		sink, err := mqtt.New(ctx, mc)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add MQTT storage backend: %w", err)
		}
		s.AddSink(sink)
	}

	return s, nil
}

func (s *StorageManager) addPartition(ctx context.Context, p *config.PartitionData) error {
	var store partition.ObjectStore
	switch p.Backend {
	case "", "filesystem":
		store = partition.NewFSStore(p.Dir)
	case "minio":
		if p.MinIO == nil {
			return fmt.Errorf("minio backend selected without minio settings")
		}
		ms, err := partition.NewMinIOStore(ctx, p.MinIO)
		if err != nil {
			return err
		}
		store = ms
	default:
		return fmt.Errorf("unknown partition backend: %s", p.Backend)
	}
	s.AddSink(partition.New(store, s.logger))
	return nil
}

// AddSink registers a sink
func (s *StorageManager) AddSink(sink storage.Sink) {
	s.logger.Infof("enabling %s storage", sink.Name())
	s.Sinks = append(s.Sinks, sink)
}

// Store hands the batch to every sink concurrently and waits for all of them.
// Errors from individual sinks are combined; a failing sink does not stop the
// others.
func (s *StorageManager) Store(ctx context.Context, b *storage.Batch) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)

	for _, sink := range s.Sinks {
		wg.Add(1)
		go func(sink storage.Sink) {
			defer wg.Done()
			err := sink.Store(ctx, b)
			s.Health.Record(sink.Name(), b.RunID, err)
			if err != nil {
				s.logger.Errorf("%s storage failed for run %s: %v", sink.Name(), b.RunID, err)
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
				mu.Unlock()
			}
		}(sink)
	}
	wg.Wait()

	return errs
}

// Close closes every sink
func (s *StorageManager) Close() error {
	var errs error
	for _, sink := range s.Sinks {
		errs = multierr.Append(errs, sink.Close())
	}
	return errs
}
