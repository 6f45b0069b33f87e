// Package retrying decorates a ledger.Repository with bounded retries of reads that
// fail because the store is unavailable.
package retrying

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/phed-ledger/internal/domain/ledger"
)

// Repository retries FindByName and List. Writes pass straight through: a commit whose
// acknowledgement was lost would otherwise be applied twice.
type Repository struct {
	next        ledger.Repository
	maxAttempts uint
	newBackOff  func() backoff.BackOff
	logger      *slog.Logger
}

// Option customises a Repository
type Option func(*Repository)

// WithBackOff overrides the exponential policy, mostly for tests
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(r *Repository) { r.newBackOff = fn }
}

func New(logger *slog.Logger, next ledger.Repository, maxAttempts int, opts ...Option) *Repository {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	r := &Repository{
		next:        next,
		maxAttempts: uint(maxAttempts),
		logger:      logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Create(ctx context.Context, item *ledger.Item) error {
	return r.next.Create(ctx, item)
}

func (r *Repository) Save(ctx context.Context, item *ledger.Item) error {
	return r.next.Save(ctx, item)
}

func (r *Repository) FindByName(ctx context.Context, kind ledger.Kind, name string) (*ledger.Item, error) {
	return retry(ctx, r, "find", func() (*ledger.Item, error) {
		return r.next.FindByName(ctx, kind, name)
	})
}

func (r *Repository) List(ctx context.Context, kind ledger.Kind, filter ledger.ListFilter) ([]*ledger.Item, error) {
	return retry(ctx, r, "list", func() ([]*ledger.Item, error) {
		return r.next.List(ctx, kind, filter)
	})
}

func retry[T any](ctx context.Context, r *Repository, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ledger.ErrStoreUnavailable{}) {
			return v, backoff.Permanent(err)
		}
		r.logger.Warn("ledger store read failed, retrying", "op", op, "attempt", attempt, "error", err)
		return v, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxAttempts),
	)
}
