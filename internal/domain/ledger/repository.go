package ledger

import "context"

// ListFilter narrows a listing; zero values match everything
type ListFilter struct {
	Category string
}

// Repository persists ledger items together with their history
type Repository interface {
	// Create stores a new item. Returns ErrDuplicateItem if the folded name is taken for the kind.
	Create(ctx context.Context, item *Item) error

	// FindByName looks an item up by case-insensitive exact name.
	// Returns ErrItemNotFound if absent.
	FindByName(ctx context.Context, kind Kind, name string) (*Item, error)

	// Save overwrites the stored revision wholesale. The stored version must equal
	// item.Version-1, otherwise ErrConcurrentModification is returned.
	Save(ctx context.Context, item *Item) error

	// List returns the items of a kind in a stable order
	List(ctx context.Context, kind Kind, filter ListFilter) ([]*Item, error)
}
