package producers

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// Header keys set on every ledger event so consumers can route without decoding the payload
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
)

// EventMessage is one encoded ledger event bound for the event topic
type EventMessage struct {
	ItemID  string
	EventID string
	Type    string
	Payload json.RawMessage
}

// LedgerEventPublisher writes ledger events keyed by item id
type LedgerEventPublisher interface {
	Publish(ctx context.Context, msg EventMessage) error
	Close() error
}

// DeadLetterPublisher parks messages the relay cannot archive
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the part of *kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
