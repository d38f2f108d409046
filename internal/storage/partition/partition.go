// Package partition writes enriched readings as objects partitioned by date
// and sensor, on a local file system or in an S3-compatible bucket.
package partition

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
)

// ContentType of the partition objects
const ContentType = "application/x-msgpack"

// ObjectStore stores opaque objects under slash-separated keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Describe() string
}

// Key identifies one partition.
type Key struct {
	Date     string
	SensorID string
}

// Path returns the object key of the partition file written by runID.
func (k Key) Path(runID string) string {
	return fmt.Sprintf("date=%s/sensor_id=%s/part-%s.msgpack", k.Date, sanitize(k.SensorID), runID)
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

// Group splits readings by (date, sensor), preserving input order inside each group.
func Group(readings []types.EnrichedReading) map[Key][]types.EnrichedReading {
	groups := make(map[Key][]types.EnrichedReading)
	for _, r := range readings {
		k := Key{Date: r.Date, SensorID: r.SensorID}
		groups[k] = append(groups[k], r)
	}
	return groups
}

// Encode writes readings in the partition file format.
func Encode(w io.Writer, readings []types.EnrichedReading) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(readings)
}

// Decode reads a partition file.
func Decode(r io.Reader) ([]types.EnrichedReading, error) {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	var readings []types.EnrichedReading
	if err := dec.Decode(&readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// Writer is the partitioned storage sink.
type Writer struct {
	store  ObjectStore
	logger *zap.SugaredLogger
}

// New creates a partition writer on top of store.
func New(store ObjectStore, logger *zap.SugaredLogger) *Writer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Writer{store: store, logger: logger}
}

func (w *Writer) Name() string {
	return "partition"
}

// Store writes one object per (date, sensor) partition of the batch.
func (w *Writer) Store(ctx context.Context, b *storage.Batch) error {
	groups := Group(b.Readings)

	keys := make([]Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].SensorID < keys[j].SensorID
	})

	var buf bytes.Buffer
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		buf.Reset()
		if err := Encode(&buf, groups[k]); err != nil {
			return fmt.Errorf("failed to encode partition %s: %w", k.Path(b.RunID), err)
		}
		if err := w.store.Put(ctx, k.Path(b.RunID), buf.Bytes(), ContentType); err != nil {
			return fmt.Errorf("failed to write partition %s: %w", k.Path(b.RunID), err)
		}
	}

	w.logger.Infof("wrote %d partitions to %s", len(keys), w.store.Describe())
	return nil
}

func (w *Writer) Close() error {
	return nil
}
