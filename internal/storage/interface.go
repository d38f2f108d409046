// Package storage defines the sinks that persist the output of a pipeline run.
package storage

import (
	"context"
	"time"

	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/internal/types"
)

// Batch is everything a pipeline run produced.
type Batch struct {
	RunID     string
	StartedAt time.Time
	Readings  []types.EnrichedReading
	Report    []types.ReportRow
	Warnings  []engine.DegenerateGroupWarning
	Files     []types.FileStat
}

// SourceFiles returns the names of the files that contributed to the batch.
func (b *Batch) SourceFiles() []string {
	names := []string{}
	for _, f := range b.Files {
		if !f.Failed {
			names = append(names, f.Name)
		}
	}
	return names
}

// Sink persists a batch somewhere. Store must be safe to call from its own
// goroutine while other sinks store the same batch.
type Sink interface {
	Name() string
	Store(ctx context.Context, b *Batch) error
	Close() error
}
