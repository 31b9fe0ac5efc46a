package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/creator-coin-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// EventTypeHeader carries the event type so consumers can filter without decoding
const EventTypeHeader = "event-type"

// EventProducer publishes outbox events to the monetization events topic.
// Writes are synchronous so the outbox row is only marked processed once the
// broker acknowledged it.
type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewEventProducer dials the brokers, ensures the events topic exists and builds the writer
func NewEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for event producer: %w", err)
	}
	defer conn.Close()

	if err := ensureTopic(conn, cfg.EventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists: %w", cfg.EventsTopic, err)
	}

	// hashing on the key keeps events of one aggregate ordered on one partition
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return NewEventProducerWithWriter(logger, writer, cfg.EventsTopic), nil
}

// NewEventProducerWithWriter builds a producer around an existing writer
func NewEventProducerWithWriter(logger *slog.Logger, writer KafkaWriter, topic string) *EventProducer {
	return &EventProducer{logger: logger, writer: writer, topic: topic}
}

// PublishEvent writes one encoded event keyed by its aggregate id
func (p *EventProducer) PublishEvent(ctx context.Context, key string, eventType string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("event %s for %s has an invalid json payload", eventType, key)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish monetization event",
			"topic", p.topic,
			"key", key,
			"event_type", eventType,
			"error", err,
		)
		return fmt.Errorf("failed to publish event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published monetization event", "topic", p.topic, "key", key, "event_type", eventType)
	return nil
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing monetization event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close event writer for topic %s: %w", p.topic, err)
	}
	return nil
}
