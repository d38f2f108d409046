// Package kafka publishes enriched readings to a Kafka topic, one message per
// reading keyed by sensor ID.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

const writeBatchSize = 1000

// messageWriter is the subset of *kafka.Writer used by the sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the JSON payload of each record.
type Message struct {
	RunID string `json:"run_id"`
	types.EnrichedReading
}

// Storage is the Kafka sink
type Storage struct {
	writer messageWriter
	topic  string
}

// New creates a synchronous writer for the configured topic
func New(cfg *config.KafkaData) *Storage {
	return &Storage{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			Async:        false,
		},
		topic: cfg.Topic,
	}
}

func (s *Storage) Name() string {
	return "kafka"
}

// Store publishes the batch in chunks
func (s *Storage) Store(ctx context.Context, b *storage.Batch) error {
	msgs, err := Messages(b.RunID, b.Readings)
	if err != nil {
		return err
	}

	for start := 0; start < len(msgs); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		if err := s.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("failed to publish to topic %s: %w", s.topic, err)
		}
	}
	return nil
}

func (s *Storage) Close() error {
	return s.writer.Close()
}

// Messages builds one message per reading, keyed by sensor ID so a sensor's
// readings stay on one partition.
func Messages(runID string, readings []types.EnrichedReading) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(readings))
	for _, r := range readings {
		payload, err := json.Marshal(Message{RunID: runID, EnrichedReading: r})
		if err != nil {
			return nil, fmt.Errorf("failed to encode reading: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.SensorID),
			Value: payload,
			Time:  r.Timestamp,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
				{Key: "reading_type", Value: []byte(r.ReadingType)},
			},
		})
	}
	return msgs, nil
}
