package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phed-ledger/internal/domain/outbox"
	"github.com/phed-ledger/internal/platform/messaging/producers"
)

func TestEventPublisher_PublishEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("PublishesKeyedByItemAndMarksProcessed", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		producer := &MockPublisher{}
		publisher := NewEventPublisher(repo, producer, newTestLogger())
		msg := newTestMessage(t, 7, 0)

		producer.On("Publish", ctx, producers.EventMessage{
			ItemID:  msg.ItemID.String(),
			EventID: msg.EventID.String(),
			Type:    "ITEM_CREATED",
			Payload: msg.Payload,
		}).Return(nil).Once()
		repo.On("UpdateStatus", ctx, int64(7), outbox.StatusProcessed).Return(nil).Once()

		require.NoError(t, publisher.PublishEvent(ctx, msg))
		producer.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("ProducerErrorLeavesMessagePending", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		producer := &MockPublisher{}
		publisher := NewEventPublisher(repo, producer, newTestLogger())
		msg := newTestMessage(t, 8, 0)

		producer.On("Publish", ctx, mock.MatchedBy(func(m producers.EventMessage) bool {
			return m.ItemID == msg.ItemID.String()
		})).Return(errors.New("broker down")).Once()

		err := publisher.PublishEvent(ctx, msg)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnpublishable)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UndecodablePayload", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		producer := &MockPublisher{}
		publisher := NewEventPublisher(repo, producer, newTestLogger())
		msg := &outbox.Message{ID: 9, Payload: json.RawMessage(`"not an event"`)}

		repo.On("UpdateStatus", ctx, int64(9), outbox.StatusFailedToPublish).Return(nil).Once()

		err := publisher.PublishEvent(ctx, msg)
		assert.ErrorIs(t, err, ErrUnpublishable)
		producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("MarkProcessedFails", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		producer := &MockPublisher{}
		publisher := NewEventPublisher(repo, producer, newTestLogger())
		msg := newTestMessage(t, 10, 0)

		producer.On("Publish", ctx, mock.Anything).Return(nil).Once()
		repo.On("UpdateStatus", ctx, int64(10), outbox.StatusProcessed).Return(errors.New("conn reset")).Once()

		assert.ErrorContains(t, publisher.PublishEvent(ctx, msg), "failed to mark outbox 10 as PROCESSED")
	})

	t.Run("MissingRowAfterPublishIsDone", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		producer := &MockPublisher{}
		publisher := NewEventPublisher(repo, producer, newTestLogger())
		msg := newTestMessage(t, 11, 0)

		producer.On("Publish", ctx, mock.Anything).Return(nil).Once()
		repo.On("UpdateStatus", ctx, int64(11), outbox.StatusProcessed).Return(outbox.ErrMessageNotFound{ID: 11}).Once()

		assert.NoError(t, publisher.PublishEvent(ctx, msg))
		producer.AssertExpectations(t)
	})
}
