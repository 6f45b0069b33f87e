package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/event_relay/service"
	"github.com/phed-ledger/internal/platform/messaging/producers"
)

// EventHandler archives ledger events consumed from Kafka
type EventHandler struct {
	archiveService service.ArchiveService
	dlq            producers.DeadLetterPublisher
	logger         *slog.Logger
}

// NewEventHandler creates a new handler. dlq may be nil when no DLQ topic is configured.
func NewEventHandler(
	logger *slog.Logger,
	archiveService service.ArchiveService,
	dlq producers.DeadLetterPublisher,
) *EventHandler {
	return &EventHandler{
		archiveService: archiveService,
		dlq:            dlq,
		logger:         logger,
	}
}

// HandleMessage archives one event. A nil return commits the offset; unreadable
// messages are committed once they are parked on the DLQ, or logged and dropped when
// there is none.
func (h *EventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var ev event.LedgerEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return h.deadLetter(ctx, key, value, "unreadable ledger event: "+err.Error(), err)
	}

	logger := h.logger.With("event_id", ev.EventID.String(), "item_id", ev.ItemID.String())

	if err := h.archiveService.ArchiveEvent(ctx, &ev); err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			return h.deadLetter(ctx, key, value, err.Error(), err)
		}
		logger.Error("Failed to archive ledger event", "error", err)
		return fmt.Errorf("archiving event %s failed: %w", ev.EventID, err)
	}

	return nil
}

func (h *EventHandler) deadLetter(ctx context.Context, key, value []byte, reason string, cause error) error {
	h.logger.Error("Unprocessable ledger event", "message_key", string(key), "reason", reason)

	if h.dlq == nil {
		// an error here is retried in place and would stall the partition
		h.logger.Error("No DLQ configured, dropping unprocessable ledger event", "message_key", string(key), "payload", string(value), "error", cause)
		return nil
	}
	if err := h.dlq.PublishToDLQ(ctx, string(key), value, reason); err != nil {
		h.logger.Error("Failed to publish message to DLQ", "dlq_error", err, "message_key", string(key))
		return fmt.Errorf("unprocessable message, DLQ publish failed: %w", cause)
	}
	return nil
}
