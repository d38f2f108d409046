// Package reportcsv writes the data quality report as a CSV file.
package reportcsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
)

var header = []string{"reading_type", "total", "pct_missing", "pct_anomalous", "missing_hours"}

// Write encodes report rows with a header line.
func Write(w io.Writer, rows []types.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.ReadingType,
			strconv.Itoa(r.Total),
			strconv.FormatFloat(r.PctMissing, 'f', -1, 64),
			strconv.FormatFloat(r.PctAnomalous, 'f', -1, 64),
			strconv.Itoa(r.MissingHours),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Sink writes the report of each batch to a fixed path, replacing the
// previous report.
type Sink struct {
	path   string
	logger *zap.SugaredLogger
}

// New creates a report sink writing to path.
func New(path string, logger *zap.SugaredLogger) *Sink {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sink{path: path, logger: logger}
}

func (s *Sink) Name() string {
	return "report-csv"
}

func (s *Sink) Store(ctx context.Context, b *storage.Batch) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".report-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, b.Report); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}

	s.logger.Infof("validation report saved to %s", s.path)
	return nil
}

func (s *Sink) Close() error {
	return nil
}
