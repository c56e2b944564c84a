package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/acme/dialburst/internal/config"
)

// KafkaSink mirrors live status events onto a Kafka topic for downstream
// consumers (dashboards, archival). The SSE hub remains the primary path;
// the mirror is best-effort.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink constructs a sink for the configured status topic.
func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers configured")
	}
	if cfg.StatusTopic == "" {
		return nil, fmt.Errorf("kafka sink: no status topic configured")
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.StatusTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}, nil
}

type mirrorRecord struct {
	SessionToken string    `json:"session_token"`
	OccurredAt   time.Time `json:"occurred_at"`
	Event
}

// Write publishes one event to the topic, keyed by session so per-session
// ordering survives partitioning.
func (s *KafkaSink) Write(sessionToken string, ev Event) error {
	value, err := json.Marshal(mirrorRecord{
		SessionToken: sessionToken,
		OccurredAt:   time.Now().UTC(),
		Event:        ev,
	})
	if err != nil {
		return fmt.Errorf("kafka sink: marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := kafka.Message{
		Key:   []byte(sessionToken),
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := s.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("kafka sink: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
