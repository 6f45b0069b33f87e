package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/domain/ledger"
	"github.com/phed-ledger/internal/platform/auth"
	"github.com/phed-ledger/internal/platform/keylock"
)

// Options tunes the ledger service
type Options struct {
	MaxSaveAttempts int  // Re-read and save attempts after an optimistic conflict
	AllowNegative   bool // Let deltas take a quantity below zero
}

// LedgerServiceImpl implements LedgerService. Mutations of one (kind, name) are
// serialised by the locker and guarded again by the store's version check, which
// covers writers that do not share the lock.
type LedgerServiceImpl struct {
	repo    ledger.Repository
	archive event.ArchiveRepository
	locker  keylock.Locker
	opts    Options
	logger  *slog.Logger
}

func NewLedgerService(
	logger *slog.Logger,
	repo ledger.Repository,
	archive event.ArchiveRepository,
	locker keylock.Locker,
	opts Options,
) LedgerService {
	if opts.MaxSaveAttempts < 1 {
		opts.MaxSaveAttempts = 1
	}
	return &LedgerServiceImpl{
		repo:    repo,
		archive: archive,
		locker:  locker,
		opts:    opts,
		logger:  logger,
	}
}

func lockKey(kind ledger.Kind, name string) string {
	return string(kind) + ":" + ledger.NameKey(name)
}

func validateKind(kind ledger.Kind) error {
	if !kind.Valid() {
		return ledger.ErrInvalidArgument{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}
	return nil
}

func (s *LedgerServiceImpl) CreateItem(ctx context.Context, in CreateItemInput) (*ledger.Item, error) {
	var quantity int64
	if in.Quantity != nil {
		quantity = *in.Quantity
	}

	item, err := ledger.NewItem(in.Kind, in.Name, in.Category, quantity, in.Description, auth.ActorFrom(ctx))
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(in.Kind, in.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s item %q: %w", in.Kind, in.Name, err)
	}
	defer unlock()

	if err := s.repo.Create(ctx, item); err != nil {
		if !errors.Is(err, ledger.ErrDuplicateItem{}) {
			s.logger.Error("failed to create ledger item", "kind", in.Kind, "name", in.Name, "error", err)
		}
		return nil, err
	}

	s.logger.Info("ledger item created",
		"item_id", item.ID.String(),
		"kind", item.Kind,
		"name", item.Name,
		"quantity", item.Quantity,
		"actor", auth.ActorFrom(ctx),
	)
	return item, nil
}

func (s *LedgerServiceImpl) ApplyDelta(ctx context.Context, in ApplyDeltaInput) (*ledger.Item, error) {
	if err := validateKind(in.Kind); err != nil {
		return nil, err
	}
	if err := ledger.ValidateName(in.Name); err != nil {
		return nil, err
	}
	if err := ledger.ValidateDescription(in.Description); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(in.Kind, in.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s item %q: %w", in.Kind, in.Name, err)
	}
	defer unlock()

	actor := auth.ActorFrom(ctx)
	for attempt := 1; ; attempt++ {
		item, err := s.applyOnce(ctx, in, actor)
		if err == nil {
			s.logger.Info("ledger item adjusted",
				"item_id", item.ID.String(),
				"kind", item.Kind,
				"name", item.Name,
				"delta", in.Delta,
				"quantity", item.Quantity,
				"version", item.Version,
				"actor", actor,
			)
			return item, nil
		}
		if !errors.Is(err, ledger.ErrConcurrentModification{}) || attempt >= s.opts.MaxSaveAttempts {
			return nil, err
		}
		s.logger.Warn("ledger item modified concurrently, retrying",
			"kind", in.Kind,
			"name", in.Name,
			"attempt", attempt,
		)
	}
}

// applyOnce is one read-append-save round. The stored item is never mutated in place,
// so a failed round leaves nothing behind.
func (s *LedgerServiceImpl) applyOnce(ctx context.Context, in ApplyDeltaInput, actor string) (*ledger.Item, error) {
	current, err := s.repo.FindByName(ctx, in.Kind, in.Name)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := next.ApplyDelta(in.Delta, in.Description, actor); err != nil {
		return nil, err
	}
	if !s.opts.AllowNegative && in.Delta < 0 && next.Quantity < 0 {
		return nil, ledger.ErrInvalidArgument{
			Field:  "quantityToAdd",
			Reason: fmt.Sprintf("insufficient quantity: %d available", current.Quantity),
		}
	}
	if err := next.VerifyHistory(); err != nil {
		s.logger.Error("refusing to save item with inconsistent history", "item_id", current.ID.String(), "error", err)
		return nil, err
	}

	// a caller that gave up must not get a write it no longer expects
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *LedgerServiceImpl) ListItems(ctx context.Context, kind ledger.Kind, category string) ([]*ledger.Item, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	if kind == ledger.KindAsset {
		category = ""
	}

	items, err := s.repo.List(ctx, kind, ledger.ListFilter{Category: category})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*ledger.Item{}
	}
	return items, nil
}

func (s *LedgerServiceImpl) GetItem(ctx context.Context, kind ledger.Kind, name string) (*ledger.Item, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	if err := ledger.ValidateName(name); err != nil {
		return nil, err
	}
	return s.repo.FindByName(ctx, kind, name)
}

func (s *LedgerServiceImpl) ListEvents(ctx context.Context, kind ledger.Kind, name string, page, perPage int) ([]*event.LedgerEvent, int64, error) {
	item, err := s.GetItem(ctx, kind, name)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	offset := (page - 1) * perPage

	events, err := s.archive.GetByItemID(ctx, item.ID, perPage, offset)
	if err != nil {
		s.logger.Error("failed to read event archive", "item_id", item.ID.String(), "error", err)
		return nil, 0, err
	}
	total, err := s.archive.CountByItemID(ctx, item.ID)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
