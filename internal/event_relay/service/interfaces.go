package service

import (
	"context"
	"errors"

	"github.com/phed-ledger/internal/domain/event"
)

// ErrInvalidEvent marks decoded events that can never be archived
var ErrInvalidEvent = errors.New("invalid ledger event")

// ArchiveService stores ledger events read from the event topic
type ArchiveService interface {
	ArchiveEvent(ctx context.Context, ev *event.LedgerEvent) error
}
