package service

import (
	"context"

	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/domain/ledger"
)

// CreateItemInput carries a validated create request. A nil Quantity starts the item at zero.
type CreateItemInput struct {
	Kind        ledger.Kind
	Name        string
	Category    string
	Quantity    *int64
	Description string
}

// ApplyDeltaInput carries a validated quantity adjustment
type ApplyDeltaInput struct {
	Kind        ledger.Kind
	Name        string
	Delta       int64
	Description string
}

// LedgerService defines the operations on assets and inventory items
type LedgerService interface {
	// CreateItem registers a new item with a single baseline history entry.
	// Returns ErrDuplicateItem if the name is taken for the kind, ignoring case.
	CreateItem(ctx context.Context, in CreateItemInput) (*ledger.Item, error)

	// ApplyDelta appends an adjustment to the item's history and moves its quantity.
	// Returns ErrInvalidArgument without touching the item when the description is blank.
	ApplyDelta(ctx context.Context, in ApplyDeltaInput) (*ledger.Item, error)

	// ListItems returns the items of a kind, optionally narrowed to one category.
	// An empty result is a non-nil empty slice.
	ListItems(ctx context.Context, kind ledger.Kind, category string) ([]*ledger.Item, error)

	// GetItem looks up one item by case-insensitive name
	GetItem(ctx context.Context, kind ledger.Kind, name string) (*ledger.Item, error)

	// ListEvents returns one page of the archived events of an item plus the total count
	ListEvents(ctx context.Context, kind ledger.Kind, name string, page, perPage int) ([]*event.LedgerEvent, int64, error)
}
