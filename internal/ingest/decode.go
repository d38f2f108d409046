package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/internal/types"
)

// Supported source file extensions
const (
	ExtCSV     = ".csv"
	ExtMsgpack = ".msgpack"
)

var requiredColumns = []string{"sensor_id", "reading_type", "timestamp", "value"}

// Timestamps are tried against these layouts in order. Layouts without a zone
// are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 style timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseValue returns nil for empty and explicit null markers. NaN and
// infinities are treated as missing.
func parseValue(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na", "n/a":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}

// DecodeCSV reads readings from a CSV stream with a header row. Columns other
// than the required ones are ignored. A missing required column yields a
// *engine.SchemaError.
func DecodeCSV(r io.Reader, source string) ([]types.Reading, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &engine.SchemaError{Field: requiredColumns[0], Row: -1, Reason: "empty file"}
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, &engine.SchemaError{Field: col, Row: -1, Reason: "column not present in header"}
		}
	}

	var readings []types.Reading
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		r := types.Reading{
			SensorID:    strings.TrimSpace(rec[index["sensor_id"]]),
			ReadingType: strings.TrimSpace(rec[index["reading_type"]]),
			SourceFile:  source,
		}

		if ts := strings.TrimSpace(rec[index["timestamp"]]); ts != "" {
			r.Timestamp, err = ParseTimestamp(ts)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
		}

		r.Value, err = parseValue(rec[index["value"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		readings = append(readings, r)
	}
	return readings, nil
}

// DecodeMsgpack reads a MessagePack array of readings. Field names follow the
// JSON names of types.Reading.
func DecodeMsgpack(r io.Reader, source string) ([]types.Reading, error) {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")

	var readings []types.Reading
	if err := dec.Decode(&readings); err != nil {
		return nil, fmt.Errorf("failed to decode msgpack: %w", err)
	}
	for i := range readings {
		if readings[i].SourceFile == "" {
			readings[i].SourceFile = source
		}
	}
	return readings, nil
}

// EncodeMsgpack writes readings in the format DecodeMsgpack reads.
func EncodeMsgpack(w io.Writer, readings []types.Reading) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(readings)
}

// DecodeFile decodes a source file, choosing the decoder by extension.
func DecodeFile(path string) ([]types.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCSV:
		return DecodeCSV(f, name)
	case ExtMsgpack:
		return DecodeMsgpack(f, name)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// IsSupported reports whether name has a decodable extension.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtCSV, ExtMsgpack:
		return true
	}
	return false
}
