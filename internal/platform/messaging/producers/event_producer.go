package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/phed-ledger/internal/config"
)

// EventProducer publishes ledger events keyed by item id. Writes are synchronous
// so the outbox row is only marked processed once the broker has the event.
type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewEventProducer creates the ledger event producer and ensures its topic exists
func NewEventProducer(logger *slog.Logger, cfg *config.KafkaConfig) (*EventProducer, error) {
	if cfg.EventTopic == "" {
		return nil, fmt.Errorf("kafka event topic is not configured")
	}

	if err := ensureTopic(logger, cfg, cfg.EventTopic); err != nil {
		return nil, fmt.Errorf("failed to ensure event topic %s exists: %w", cfg.EventTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventTopic,
		Balancer:     &kafka.Hash{}, // one item, one partition
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &EventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventTopic,
	}, nil
}

// Publish writes the already encoded event under its item id
func (p *EventProducer) Publish(ctx context.Context, msg EventMessage) error {
	if !json.Valid(msg.Payload) {
		return fmt.Errorf("event %s for %s is not valid JSON", msg.EventID, p.topic)
	}

	kmsg := kafka.Message{
		Key:   []byte(msg.ItemID),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(msg.EventID)},
			{Key: HeaderEventType, Value: []byte(msg.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, kmsg); err != nil {
		p.logger.Error("Failed to publish ledger event",
			"topic", p.topic,
			"item_id", msg.ItemID,
			"event_id", msg.EventID,
			"error", err,
		)
		return fmt.Errorf("failed to publish event %s to %s: %w", msg.EventID, p.topic, err)
	}

	p.logger.Debug("Published ledger event", "topic", p.topic, "item_id", msg.ItemID, "event_id", msg.EventID)
	return nil
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing ledger event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
