package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
)

type fakeWriter struct {
	calls    int
	messages []kafka.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.calls++
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func readings(n int) []types.EnrichedReading {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.EnrichedReading, n)
	for i := range out {
		out[i] = types.EnrichedReading{
			Reading: types.Reading{SensorID: "s1", ReadingType: "battery", Timestamp: ts.Add(time.Duration(i) * time.Hour), Value: types.Float(3.9)},
			Date:    "2025-01-01",
		}
	}
	return out
}

func TestMessages(t *testing.T) {
	msgs, err := Messages("run-1", readings(1))
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].Key) != "s1" {
		t.Fatalf("messages = %+v", msgs)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(msgs[0].Value, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["run_id"] != "run-1" || payload["sensor_id"] != "s1" || payload["value"] != 3.9 || payload["anomalous_reading"] != false {
		t.Errorf("payload = %v", payload)
	}
}

func TestStoreChunks(t *testing.T) {
	fw := &fakeWriter{}
	s := &Storage{writer: fw, topic: "enriched"}

	if err := s.Store(context.Background(), &storage.Batch{RunID: "r", Readings: readings(2500)}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if fw.calls != 3 || len(fw.messages) != 2500 {
		t.Errorf("calls = %d, messages = %d", fw.calls, len(fw.messages))
	}
}
