package event

import (
	"context"

	"github.com/google/uuid"
)

// ArchiveRepository stores ledger events for later audit queries
type ArchiveRepository interface {
	// Archive stores the event; archiving the same event twice is a no-op
	Archive(ctx context.Context, ev *LedgerEvent) error
	GetByItemID(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*LedgerEvent, error)
	CountByItemID(ctx context.Context, itemID uuid.UUID) (int64, error)
}
