package outbox_poller

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/domain/ledger"
	"github.com/phed-ledger/internal/domain/outbox"
	"github.com/phed-ledger/internal/platform/messaging/producers"
)

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg producers.EventMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, message *outbox.Message) error {
	return m.Called(ctx, message).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestMessage(t *testing.T, id int64, attempts int) *outbox.Message {
	t.Helper()
	item, err := ledger.NewItem(ledger.KindInventory, "Chlorine", "chemicals", 4, "", "")
	require.NoError(t, err)
	ev, err := event.FromItem(item, event.TypeItemCreated)
	require.NoError(t, err)
	msg, err := outbox.NewMessage(ev)
	require.NoError(t, err)
	msg.ID = id
	msg.Attempts = attempts
	return msg
}
