package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phed-ledger/internal/domain/outbox"
	"github.com/phed-ledger/internal/platform/messaging/producers"
)

// ErrUnpublishable marks outbox messages whose payload is not a ledger event
var ErrUnpublishable = errors.New("outbox payload is not a ledger event")

// EventPublisher publishes one outbox message to the event topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, message *outbox.Message) error
}

// EventPublisherImpl implements EventPublisher on top of a Kafka producer
type EventPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.LedgerEventPublisher
	logger     *slog.Logger
}

func NewEventPublisher(
	outboxRepo outbox.Repository,
	producer producers.LedgerEventPublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishEvent writes the event keyed by its item id and marks the message
// PROCESSED. Publishing is at least once: a crash between the two steps
// republishes the event, and the archive ignores the duplicate.
func (p *EventPublisherImpl) PublishEvent(ctx context.Context, message *outbox.Message) error {
	ev, err := message.GetEvent()
	if err != nil {
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusFailedToPublish); updateErr != nil {
			p.logger.Error("Failed to mark undecodable outbox message", "outbox_id", message.ID, "error", updateErr)
		}
		return fmt.Errorf("%w: outbox %d: %v", ErrUnpublishable, message.ID, err)
	}

	if err := p.producer.Publish(ctx, producers.EventMessage{
		ItemID:  ev.ItemID.String(),
		EventID: ev.EventID.String(),
		Type:    string(ev.Type),
		Payload: message.Payload,
	}); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", ev.EventID, err)
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, outbox.StatusProcessed); err != nil {
		if errors.Is(err, outbox.ErrMessageNotFound{}) {
			p.logger.Warn("Outbox row vanished after publish, nothing left to mark", "outbox_id", message.ID, "event_id", ev.EventID.String())
			return nil
		}
		return fmt.Errorf("event %s published, but failed to mark outbox %d as PROCESSED: %w", ev.EventID, message.ID, err)
	}

	p.logger.Info("Ledger event published",
		"outbox_id", message.ID,
		"event_id", ev.EventID.String(),
		"item_id", ev.ItemID.String(),
		"type", ev.Type,
		"sequence", ev.Sequence,
	)
	return nil
}
