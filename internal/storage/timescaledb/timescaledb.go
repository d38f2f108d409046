// Package timescaledb stores enriched readings, quality reports and run
// records in TimescaleDB.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/chrissnell/sensorpipe/internal/database"
	"github.com/chrissnell/sensorpipe/internal/log"
	"github.com/chrissnell/sensorpipe/internal/storage"
)

const insertBatchSize = 500

// Storage holds the connection of the TimescaleDB sink
type Storage struct {
	TimescaleDBConn *gorm.DB
}

// New connects to TimescaleDB and creates the schema
func New(ctx context.Context, connectionString string) (*Storage, error) {
	db, err := database.CreateConnection(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	for _, stmt := range setupStatements {
		log.Infof("creating %s...", stmt.name)
		if err := db.WithContext(ctx).Exec(stmt.sql).Error; err != nil {
			log.Warnf("warning: could not create %s", stmt.name)
			return nil, fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}

	return &Storage{TimescaleDBConn: db}, nil
}

func (t *Storage) Name() string {
	return "timescaledb"
}

// Store writes the batch in one transaction
func (t *Storage) Store(ctx context.Context, b *storage.Batch) error {
	now := time.Now()
	readings := database.NewSensorReadings(b.RunID, b.Readings)
	reports := database.NewQualityReports(b.RunID, b.Report, now)

	warnings, err := database.JSONB(b.Warnings)
	if err != nil {
		return err
	}
	fileStats, err := database.JSONB(b.Files)
	if err != nil {
		return err
	}
	run := database.PipelineRun{
		RunID:       b.RunID,
		StartedAt:   b.StartedAt,
		StoredAt:    now,
		ReadingRows: len(readings),
		SourceFiles: b.SourceFiles(),
		Warnings:    warnings,
		FileStats:   fileStats,
	}

	return t.TimescaleDBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(readings) > 0 {
			if err := tx.CreateInBatches(readings, insertBatchSize).Error; err != nil {
				log.Error("could not store readings:", err)
				return err
			}
		}
		if len(reports) > 0 {
			if err := tx.Create(&reports).Error; err != nil {
				log.Error("could not store quality report:", err)
				return err
			}
		}
		return tx.Create(&run).Error
	})
}

// Close releases the connection pool
func (t *Storage) Close() error {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
