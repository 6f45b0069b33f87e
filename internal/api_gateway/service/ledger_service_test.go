package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/domain/ledger"
	"github.com/phed-ledger/internal/domain/principal"
	"github.com/phed-ledger/internal/platform/auth"
	"github.com/phed-ledger/internal/platform/keylock"
)

func int64Ptr(v int64) *int64 { return &v }

func newTestService(repo ledger.Repository, opts Options) LedgerService {
	return NewLedgerService(newTestLogger(), repo, &MockArchiveRepository{}, keylock.NewLocal(), opts)
}

func TestLedgerService_ValveScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository(), Options{MaxSaveAttempts: 3})

	item, err := svc.CreateItem(ctx, CreateItemInput{
		Kind: ledger.KindInventory, Name: "Valve", Category: "plumbing",
		Quantity: int64Ptr(10), Description: "initial stock",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Quantity)
	require.Len(t, item.History, 1)
	assert.Equal(t, int64(10), item.History[0].QuantityAdded)
	assert.Equal(t, int64(10), item.History[0].UpdatedQuantity)
	assert.Equal(t, "initial stock", item.History[0].Description)

	item, err = svc.ApplyDelta(ctx, ApplyDeltaInput{
		Kind: ledger.KindInventory, Name: "Valve", Delta: -3, Description: "used on site A",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.Quantity)
	require.Len(t, item.History, 2)
	assert.Equal(t, int64(-3), item.History[1].QuantityAdded)
	assert.Equal(t, int64(7), item.History[1].UpdatedQuantity)
	assert.Equal(t, "used on site A", item.History[1].Description)
}

func TestLedgerService_CreateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("asset defaults", func(t *testing.T) {
		svc := newTestService(newMemRepository(), Options{})
		item, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Category: "ignored"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), item.Quantity)
		assert.Empty(t, item.Category)
		require.Len(t, item.History, 1)
		assert.Equal(t, ledger.DefaultInitialDescription, item.History[0].Description)
	})

	t.Run("case-insensitive duplicate", func(t *testing.T) {
		svc := newTestService(newMemRepository(), Options{})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump"})
		require.NoError(t, err)

		_, err = svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "pump"})
		assert.ErrorIs(t, err, ledger.ErrDuplicateItem{Kind: ledger.KindAsset, Name: "PUMP"})
	})

	t.Run("kinds are separate namespaces", func(t *testing.T) {
		svc := newTestService(newMemRepository(), Options{})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump"})
		require.NoError(t, err)
		_, err = svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindInventory, Name: "Pump"})
		assert.NoError(t, err)
	})

	t.Run("blank name", func(t *testing.T) {
		svc := newTestService(newMemRepository(), Options{})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "   "})
		assert.ErrorIs(t, err, ledger.ErrInvalidArgument{Field: "name"})
	})

	t.Run("records actor", func(t *testing.T) {
		svc := newTestService(newMemRepository(), Options{})
		p := &principal.Principal{ID: uuid.New(), Kind: principal.KindPhedUser}
		item, err := svc.CreateItem(auth.WithPrincipal(ctx, p), CreateItemInput{Kind: ledger.KindAsset, Name: "Pump"})
		require.NoError(t, err)
		assert.Equal(t, p.Ref(), item.History[0].RecordedBy)
	})

	t.Run("store unavailable", func(t *testing.T) {
		repo := newMemRepository()
		repo.failWith = ledger.ErrStoreUnavailable{Op: "create", Err: errors.New("down")}
		svc := newTestService(repo, Options{})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump"})
		assert.ErrorIs(t, err, ledger.ErrStoreUnavailable{})
	})
}

func TestLedgerService_ApplyDelta_MandatoryDescription(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepository()
	svc := newTestService(repo, Options{MaxSaveAttempts: 1})
	_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Quantity: int64Ptr(10)})
	require.NoError(t, err)

	for _, desc := range []string{"", "   "} {
		_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{Kind: ledger.KindAsset, Name: "Pump", Delta: 5, Description: desc})
		assert.ErrorIs(t, err, ledger.ErrInvalidArgument{Field: "description"})
	}

	item, err := svc.GetItem(ctx, ledger.KindAsset, "pump")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Quantity)
	assert.Len(t, item.History, 1)
	assert.Equal(t, 0, repo.saves)
}

func TestLedgerService_ApplyDelta_NotFound(t *testing.T) {
	svc := newTestService(newMemRepository(), Options{MaxSaveAttempts: 1})
	_, err := svc.ApplyDelta(context.Background(), ApplyDeltaInput{Kind: ledger.KindAsset, Name: "Ghost", Delta: 1, Description: "x"})
	assert.ErrorIs(t, err, ledger.ErrItemNotFound{Kind: ledger.KindAsset, Name: "ghost"})
}

func TestLedgerService_ApplyDelta_NegativeQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected by default", func(t *testing.T) {
		svc := newTestService(newMemRepository(), Options{MaxSaveAttempts: 1})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindInventory, Name: "Valve", Quantity: int64Ptr(2)})
		require.NoError(t, err)

		_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{Kind: ledger.KindInventory, Name: "Valve", Delta: -3, Description: "used"})
		assert.ErrorIs(t, err, ledger.ErrInvalidArgument{Field: "quantityToAdd"})

		item, err := svc.GetItem(ctx, ledger.KindInventory, "Valve")
		require.NoError(t, err)
		assert.Equal(t, int64(2), item.Quantity)
	})

	t.Run("allowed when configured", func(t *testing.T) {
		svc := newTestService(newMemRepository(), Options{MaxSaveAttempts: 1, AllowNegative: true})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindInventory, Name: "Valve", Quantity: int64Ptr(2)})
		require.NoError(t, err)

		item, err := svc.ApplyDelta(ctx, ApplyDeltaInput{Kind: ledger.KindInventory, Name: "Valve", Delta: -3, Description: "borrowed"})
		require.NoError(t, err)
		assert.Equal(t, int64(-1), item.Quantity)
		assert.NoError(t, item.VerifyHistory())
	})
}

func TestLedgerService_ApplyDelta_RetriesOptimisticConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds within attempts", func(t *testing.T) {
		repo := newMemRepository()
		svc := newTestService(repo, Options{MaxSaveAttempts: 3})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Quantity: int64Ptr(1)})
		require.NoError(t, err)

		repo.conflicts = 2
		item, err := svc.ApplyDelta(ctx, ApplyDeltaInput{Kind: ledger.KindAsset, Name: "Pump", Delta: 1, Description: "new"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), item.Quantity)
		assert.Len(t, item.History, 2)
	})

	t.Run("exhausted", func(t *testing.T) {
		repo := newMemRepository()
		svc := newTestService(repo, Options{MaxSaveAttempts: 2})
		_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Quantity: int64Ptr(1)})
		require.NoError(t, err)

		repo.conflicts = 2
		_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{Kind: ledger.KindAsset, Name: "Pump", Delta: 1, Description: "new"})
		assert.ErrorIs(t, err, ledger.ErrConcurrentModification{})

		item, err := svc.GetItem(ctx, ledger.KindAsset, "Pump")
		require.NoError(t, err)
		assert.Equal(t, int64(1), item.Quantity)
	})
}

func TestLedgerService_ApplyDelta_CancelledContextLeavesItemUntouched(t *testing.T) {
	repo := newMemRepository()
	svc := newTestService(repo, Options{MaxSaveAttempts: 1})
	_, err := svc.CreateItem(context.Background(), CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Quantity: int64Ptr(1)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{Kind: ledger.KindAsset, Name: "Pump", Delta: 1, Description: "late"})
	assert.ErrorIs(t, err, context.Canceled)

	item, err := svc.GetItem(context.Background(), ledger.KindAsset, "Pump")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Quantity)
	assert.Len(t, item.History, 1)
}

// Two concurrent adjustments of one item must both land.
func TestLedgerService_ApplyDelta_NoLostUpdates(t *testing.T) {
	testCases := []struct {
		name    string
		locker  keylock.Locker
		workers int
	}{
		{"local lock", keylock.NewLocal(), 100},
		{"version check only", noLock{}, 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newMemRepository()
			// each failed save implies another worker committed, so workers attempts always suffice
			svc := NewLedgerService(newTestLogger(), repo, &MockArchiveRepository{}, tc.locker, Options{MaxSaveAttempts: tc.workers})
			_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Quantity: int64Ptr(10)})
			require.NoError(t, err)

			var wg sync.WaitGroup
			var expected int64 = 10
			errs := make(chan error, tc.workers)
			for i := 0; i < tc.workers; i++ {
				delta := int64(i%7 + 1)
				expected += delta
				wg.Add(1)
				go func(i int, delta int64) {
					defer wg.Done()
					_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
						Kind: ledger.KindAsset, Name: "pump", Delta: delta, Description: fmt.Sprintf("worker %d", i),
					})
					errs <- err
				}(i, delta)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			item, err := svc.GetItem(ctx, ledger.KindAsset, "Pump")
			require.NoError(t, err)
			assert.Equal(t, expected, item.Quantity)
			assert.Len(t, item.History, tc.workers+1)
			assert.Equal(t, tc.workers+1, item.Version)
			assert.NoError(t, item.VerifyHistory())
		})
	}
}

func TestLedgerService_ApplyDelta_ConcurrentPair(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository(), Options{MaxSaveAttempts: 2})
	_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Quantity: int64Ptr(10)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, in := range []ApplyDeltaInput{
		{Kind: ledger.KindAsset, Name: "Pump", Delta: 3, Description: "a"},
		{Kind: ledger.KindAsset, Name: "Pump", Delta: 4, Description: "b"},
	} {
		wg.Add(1)
		go func(in ApplyDeltaInput) {
			defer wg.Done()
			_, err := svc.ApplyDelta(ctx, in)
			assert.NoError(t, err)
		}(in)
	}
	wg.Wait()

	item, err := svc.GetItem(ctx, ledger.KindAsset, "Pump")
	require.NoError(t, err)
	assert.Equal(t, int64(17), item.Quantity)
	require.Len(t, item.History, 3)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{item.History[1].Description, item.History[2].Description})
}

// Replaying the deltas from zero reproduces every recorded total.
func TestLedgerService_HistoryReplay(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository(), Options{MaxSaveAttempts: 1, AllowNegative: true})
	_, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindInventory, Name: "Pipe", Quantity: int64Ptr(4)})
	require.NoError(t, err)

	deltas := []int64{5, -2, 0, 11, -20, 3}
	var item *ledger.Item
	for i, d := range deltas {
		item, err = svc.ApplyDelta(ctx, ApplyDeltaInput{Kind: ledger.KindInventory, Name: "Pipe", Delta: d, Description: fmt.Sprintf("step %d", i)})
		require.NoError(t, err)
	}

	var running int64
	for i, e := range item.History {
		running += e.QuantityAdded
		assert.Equal(t, running, e.UpdatedQuantity, "entry %d", i)
	}
	assert.Equal(t, running, item.Quantity)
}

func TestLedgerService_ListItems(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepository(), Options{})

	for _, in := range []CreateItemInput{
		{Kind: ledger.KindInventory, Name: "Pipe 1", Category: "pipe"},
		{Kind: ledger.KindInventory, Name: "Pipe 2", Category: "pipe"},
		{Kind: ledger.KindInventory, Name: "Valve", Category: "valve"},
	} {
		_, err := svc.CreateItem(ctx, in)
		require.NoError(t, err)
	}

	pipes, err := svc.ListItems(ctx, ledger.KindInventory, "pipe")
	require.NoError(t, err)
	assert.Len(t, pipes, 2)

	all, err := svc.ListItems(ctx, ledger.KindInventory, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assets, err := svc.ListItems(ctx, ledger.KindAsset, "")
	require.NoError(t, err)
	assert.NotNil(t, assets)
	assert.Empty(t, assets)

	_, err = svc.ListItems(ctx, ledger.Kind("TOOL"), "")
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument{Field: "kind"})
}

func TestLedgerService_ListEvents(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepository()
	archive := &MockArchiveRepository{}
	svc := NewLedgerService(newTestLogger(), repo, archive, keylock.NewLocal(), Options{})

	item, err := svc.CreateItem(ctx, CreateItemInput{Kind: ledger.KindAsset, Name: "Pump", Quantity: int64Ptr(1)})
	require.NoError(t, err)
	ev, err := event.FromItem(item, event.TypeItemCreated)
	require.NoError(t, err)

	archive.On("GetByItemID", ctx, item.ID, 10, 10).Return([]*event.LedgerEvent{ev}, nil).Once()
	archive.On("CountByItemID", ctx, item.ID).Return(int64(11), nil).Once()

	events, total, err := svc.ListEvents(ctx, ledger.KindAsset, "PUMP", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	assert.Equal(t, []*event.LedgerEvent{ev}, events)
	archive.AssertExpectations(t)

	_, _, err = svc.ListEvents(ctx, ledger.KindAsset, "Ghost", 1, 10)
	assert.ErrorIs(t, err, ledger.ErrItemNotFound{})
}
