// Package event describes the ledger change notifications published downstream.
package event

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phed-ledger/internal/domain/ledger"
)

// ErrNoHistory is returned when an event is requested for an item without entries
var ErrNoHistory = errors.New("item has no history entries")

// Type defines the ledger change categories
type Type string

const (
	TypeItemCreated      Type = "ITEM_CREATED"
	TypeQuantityAdjusted Type = "QUANTITY_ADJUSTED"
)

// LedgerEvent announces one appended audit entry
type LedgerEvent struct {
	EventID    uuid.UUID    `json:"event_id" bson:"_id"`
	Type       Type         `json:"type" bson:"type"`
	Kind       ledger.Kind  `json:"kind" bson:"kind"`
	ItemID     uuid.UUID    `json:"item_id" bson:"item_id"`
	Name       string       `json:"name" bson:"name"`
	NameKey    string       `json:"name_key" bson:"name_key"`
	Category   string       `json:"category,omitempty" bson:"category,omitempty"`
	Sequence   int          `json:"sequence" bson:"sequence"` // Position of Entry in the item history
	Entry      ledger.Entry `json:"entry" bson:"entry"`
	Quantity   int64        `json:"quantity" bson:"quantity"`
	Version    int          `json:"version" bson:"version"`
	OccurredAt time.Time    `json:"occurred_at" bson:"occurred_at"`
	ArchivedAt *time.Time   `json:"archived_at,omitempty" bson:"archived_at,omitempty"`
}

// FromItem builds the event for the most recent entry of item
func FromItem(item *ledger.Item, eventType Type) (*LedgerEvent, error) {
	entry, ok := item.LastEntry()
	if !ok {
		return nil, ErrNoHistory
	}

	return &LedgerEvent{
		EventID:    uuid.New(),
		Type:       eventType,
		Kind:       item.Kind,
		ItemID:     item.ID,
		Name:       item.Name,
		NameKey:    item.NameKey,
		Category:   item.Category,
		Sequence:   len(item.History) - 1,
		Entry:      entry,
		Quantity:   item.Quantity,
		Version:    item.Version,
		OccurredAt: entry.RecordedAt,
	}, nil
}
