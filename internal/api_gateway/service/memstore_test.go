package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/domain/ledger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// memRepository is a ledger.Repository with the same version semantics as the real stores
type memRepository struct {
	mu    sync.Mutex
	items map[string]*ledger.Item
	order []string

	// conflicts makes the next n saves fail as if another writer got there first
	conflicts int
	saves     int
	failWith  error
}

func newMemRepository() *memRepository {
	return &memRepository{items: make(map[string]*ledger.Item)}
}

func memKey(kind ledger.Kind, name string) string {
	return string(kind) + "/" + ledger.NameKey(name)
}

func (r *memRepository) Create(_ context.Context, item *ledger.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	k := memKey(item.Kind, item.Name)
	if _, ok := r.items[k]; ok {
		return ledger.ErrDuplicateItem{Kind: item.Kind, Name: item.Name}
	}
	r.items[k] = item.Clone()
	r.order = append(r.order, k)
	return nil
}

func (r *memRepository) FindByName(_ context.Context, kind ledger.Kind, name string) (*ledger.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	item, ok := r.items[memKey(kind, name)]
	if !ok {
		return nil, ledger.ErrItemNotFound{Kind: kind, Name: name}
	}
	return item.Clone(), nil
}

func (r *memRepository) Save(_ context.Context, item *ledger.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	k := memKey(item.Kind, item.Name)
	stored, ok := r.items[k]
	if !ok || stored.ID != item.ID {
		return ledger.ErrItemNotFound{Kind: item.Kind, Name: item.Name}
	}
	if r.conflicts > 0 {
		r.conflicts--
		return ledger.ErrConcurrentModification{Kind: item.Kind, Name: item.Name}
	}
	if stored.Version != item.Version-1 {
		return ledger.ErrConcurrentModification{Kind: item.Kind, Name: item.Name}
	}
	r.items[k] = item.Clone()
	r.saves++
	return nil
}

func (r *memRepository) List(_ context.Context, kind ledger.Kind, filter ledger.ListFilter) ([]*ledger.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []*ledger.Item
	for _, k := range r.order {
		item := r.items[k]
		if item.Kind != kind {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		out = append(out, item.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// noLock grants every key immediately, leaving serialisation to the version check
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type MockArchiveRepository struct {
	mock.Mock
}

func (m *MockArchiveRepository) Archive(ctx context.Context, ev *event.LedgerEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockArchiveRepository) GetByItemID(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*event.LedgerEvent, error) {
	args := m.Called(ctx, itemID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.LedgerEvent), args.Error(1)
}

func (m *MockArchiveRepository) CountByItemID(ctx context.Context, itemID uuid.UUID) (int64, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(int64), args.Error(1)
}
