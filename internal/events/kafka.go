package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studiobook/pkg/config"
	"studiobook/pkg/kafka"
	"studiobook/pkg/model"
)

const sourceName = "studiobook"

// KafkaSink publishes domain events to the ingestion topic, keyed by the
// subject identity in the event metadata so per-booking ordering holds.
type KafkaSink struct {
	producer *kafka.Producer
	cfg      *config.Config
}

func NewKafkaSink(cfg *config.Config) (*KafkaSink, error) {
	producer, err := kafka.NewProducer(&kafka.Config{
		Brokers: cfg.KafkaBrokers,
	}, cfg.KafkaEventsTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	return &KafkaSink{producer: producer, cfg: cfg}, nil
}

func (s *KafkaSink) Emit(ctx context.Context, event model.Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	key := event.Meta["booking_id"]
	if key == "" {
		key = event.Meta["order_id"]
	}
	if key == "" {
		key = event.Type
	}

	return s.producer.Publish(ctx, kafka.Message{
		Key:       key,
		Value:     payload,
		Timestamp: event.At,
		Headers: map[string]string{
			kafka.HeaderEventType: event.Type,
			kafka.HeaderSource:    sourceName,
			kafka.HeaderTimestamp: event.At.Format(time.RFC3339),
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
