package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phed-ledger/internal/domain/event"
)

// ArchiveServiceImpl writes events to the archive repository
type ArchiveServiceImpl struct {
	archive event.ArchiveRepository
	logger  *slog.Logger
}

func NewArchiveService(archive event.ArchiveRepository, logger *slog.Logger) ArchiveService {
	return &ArchiveServiceImpl{
		archive: archive,
		logger:  logger,
	}
}

// ArchiveEvent validates and stores ev. Redelivered events are absorbed by the
// repository, so the call is safe to repeat.
func (s *ArchiveServiceImpl) ArchiveEvent(ctx context.Context, ev *event.LedgerEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}

	if err := s.archive.Archive(ctx, ev); err != nil {
		return fmt.Errorf("failed to archive event %s: %w", ev.EventID, err)
	}

	s.logger.Info("Ledger event archived",
		"event_id", ev.EventID.String(),
		"item_id", ev.ItemID.String(),
		"type", ev.Type,
		"sequence", ev.Sequence,
	)
	return nil
}

func validateEvent(ev *event.LedgerEvent) error {
	switch {
	case ev == nil:
		return fmt.Errorf("%w: empty", ErrInvalidEvent)
	case ev.EventID == uuid.Nil:
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case ev.ItemID == uuid.Nil:
		return fmt.Errorf("%w: missing item_id", ErrInvalidEvent)
	case !ev.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
	case ev.Sequence < 0:
		return fmt.Errorf("%w: negative sequence", ErrInvalidEvent)
	case ev.Type != event.TypeItemCreated && ev.Type != event.TypeQuantityAdjusted:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return nil
}
