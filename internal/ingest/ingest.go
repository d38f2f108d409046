// Package ingest discovers raw sensor files, decodes them into readings and
// tracks which files have already been processed.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/sensorpipe/internal/types"
)

// Batch is the merged output of one ingestion pass.
type Batch struct {
	Readings []types.Reading
	Files    []types.FileStat
}

// Succeeded returns the number of files that decoded cleanly.
func (b *Batch) Succeeded() int {
	n := 0
	for _, f := range b.Files {
		if !f.Failed {
			n++
		}
	}
	return n
}

// Ingester reads new files from a raw data directory.
type Ingester struct {
	dir         string
	concurrency int
	checkpoint  *Checkpoint
	logger      *zap.SugaredLogger
}

// New creates an Ingester. A nil checkpoint means every file is considered new.
func New(dir string, concurrency int, checkpoint *Checkpoint, logger *zap.SugaredLogger) *Ingester {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Ingester{
		dir:         dir,
		concurrency: concurrency,
		checkpoint:  checkpoint,
		logger:      logger,
	}
}

// Discover lists supported files in the raw directory that are not yet in the
// checkpoint, sorted by name.
func (i *Ingester) Discover(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw directory %s: %w", i.dir, err)
	}

	done := map[string]bool{}
	if i.checkpoint != nil {
		if done, err = i.checkpoint.Processed(ctx); err != nil {
			return nil, err
		}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) || done[e.Name()] {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

type fileResult struct {
	readings []types.Reading
	stat     types.FileStat
}

// Ingest decodes every new file concurrently and merges the readings in file
// name order. A file that fails to decode is logged, marked failed and left
// out of the batch; it does not fail the pass.
func (i *Ingester) Ingest(ctx context.Context) (*Batch, error) {
	files, err := i.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		i.logger.Info("no new files to ingest")
		return &Batch{}, nil
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for idx, name := range files {
		idx, name := idx, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[idx] = i.ingestFile(name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{Files: make([]types.FileStat, 0, len(results))}
	for _, res := range results {
		batch.Files = append(batch.Files, res.stat)
		batch.Readings = append(batch.Readings, res.readings...)
	}
	return batch, nil
}

func (i *Ingester) ingestFile(name string) fileResult {
	i.logger.Infof("processing file %s", name)

	readings, err := DecodeFile(filepath.Join(i.dir, name))
	if err != nil {
		i.logger.Errorw("failed to process file", "file", name, "error", err)
		return fileResult{stat: types.FileStat{Name: name, Failed: true, Error: err.Error()}}
	}

	st := Summarize(name, readings)
	if st.MissingValues > 0 {
		i.logger.Warnf("file %s has %d rows with missing values", name, st.MissingValues)
	}
	for readingType, ts := range st.ByType {
		i.logger.Infow("file summary", "file", name, "reading_type", readingType, "count", ts.Count, "avg_value", ts.Mean)
	}
	return fileResult{readings: readings, stat: st}
}

// Summarize computes the per-file statistics: row count, rows missing a
// sensor, type or value, and per reading type count and mean value.
func Summarize(name string, readings []types.Reading) types.FileStat {
	st := types.FileStat{Name: name, Rows: len(readings), ByType: make(map[string]types.TypeStat)}

	values := make(map[string][]float64)
	counts := make(map[string]int)
	for _, r := range readings {
		if r.SensorID == "" || r.ReadingType == "" || r.Value == nil {
			st.MissingValues++
		}
		counts[r.ReadingType]++
		if r.Value != nil {
			values[r.ReadingType] = append(values[r.ReadingType], *r.Value)
		}
	}

	for readingType, n := range counts {
		ts := types.TypeStat{Count: n}
		if vs := values[readingType]; len(vs) > 0 {
			ts.Mean = stat.Mean(vs, nil)
		}
		st.ByType[readingType] = ts
	}
	return st
}
