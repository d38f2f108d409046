// Package mqtt publishes the data quality report of each run to an MQTT
// broker as retained messages.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/chrissnell/sensorpipe/internal/log"
	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

const (
	defaultBaseTopic = "sensorpipe"
	publishTimeout   = 5 * time.Second
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

type pahoPublisher struct {
	client pahomqtt.Client
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (p *pahoPublisher) Disconnect() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// RunSummary is published to <base>/runs/latest after each run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Readings    int       `json:"readings"`
	SourceFiles []string  `json:"source_files"`
	Warnings    int       `json:"warnings"`
}

// Storage is the MQTT sink
type Storage struct {
	pub       publisher
	baseTopic string
	qos       byte
}

// New connects to the broker
func New(ctx context.Context, cfg *config.MQTTData) (*Storage, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "sensorpipe"
	}
	opts.SetClientID(fmt.Sprintf("%s-%d", clientID, rand.Intn(10000)))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return nil, fmt.Errorf("error connecting to MQTT broker: %w", token.Error())
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("connection to MQTT broker timed out: %w", ctx.Err())
	}

	base := strings.TrimRight(cfg.BaseTopic, "/")
	if base == "" {
		base = defaultBaseTopic
	}
	return &Storage{pub: &pahoPublisher{client: client}, baseTopic: base, qos: cfg.QoS}, nil
}

func (s *Storage) Name() string {
	return "mqtt"
}

// ReportTopic returns the topic of a reading type's report row.
func (s *Storage) ReportTopic(readingType string) string {
	return fmt.Sprintf("%s/reports/%s", s.baseTopic, readingType)
}

// Store publishes each report row and a run summary, all retained
func (s *Storage) Store(ctx context.Context, b *storage.Batch) error {
	for _, row := range b.Report {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.publishJSON(s.ReportTopic(row.ReadingType), row); err != nil {
			return err
		}
	}

	summary := RunSummary{
		RunID:       b.RunID,
		StartedAt:   b.StartedAt,
		Readings:    len(b.Readings),
		SourceFiles: b.SourceFiles(),
		Warnings:    len(b.Warnings),
	}
	return s.publishJSON(s.baseTopic+"/runs/latest", summary)
}

func (s *Storage) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.pub.Publish(topic, s.qos, true, payload); err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}
	log.Debugf("published %d bytes to %s", len(payload), topic)
	return nil
}

func (s *Storage) Close() error {
	s.pub.Disconnect()
	return nil
}
