package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phed-ledger/internal/domain/event"
)

const (
	// EventCollectionName is the audit archive fed by the relay
	EventCollectionName = "ledger_events"
)

func EventIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "item_id", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetName("item_sequence"),
		},
	}
}

// EventArchiveRepository implements event.ArchiveRepository for MongoDB
type EventArchiveRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewEventArchiveRepository(logger *slog.Logger, db *mongo.Database) event.ArchiveRepository {
	return &EventArchiveRepository{db: db, logger: logger}
}

func (r *EventArchiveRepository) collection() *mongo.Collection {
	return r.db.Collection(EventCollectionName)
}

// Archive inserts the event keyed by its event id. Redelivered events hit the
// _id index and are treated as already archived.
func (r *EventArchiveRepository) Archive(ctx context.Context, ev *event.LedgerEvent) error {
	doc := *ev
	now := time.Now().UTC()
	doc.ArchivedAt = &now

	if _, err := r.collection().InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Debug("ledger event already archived", "event_id", ev.EventID.String())
			return nil
		}
		r.logger.Error("failed to archive ledger event", "event_id", ev.EventID.String(), "error", err)
		return fmt.Errorf("failed to archive ledger event: %w", err)
	}
	ev.ArchivedAt = doc.ArchivedAt
	return nil
}

// GetByItemID returns archived events of one item in history order
func (r *EventArchiveRepository) GetByItemID(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]*event.LedgerEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sequence", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection().Find(ctx, bson.M{"item_id": itemID}, opts)
	if err != nil {
		r.logger.Error("failed to get ledger events", "item_id", itemID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]*event.LedgerEvent, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode ledger events: %w", err)
	}
	return events, nil
}

func (r *EventArchiveRepository) CountByItemID(ctx context.Context, itemID uuid.UUID) (int64, error) {
	count, err := r.collection().CountDocuments(ctx, bson.M{"item_id": itemID})
	if err != nil {
		r.logger.Error("failed to count ledger events", "item_id", itemID.String(), "error", err)
		return 0, fmt.Errorf("failed to count ledger events: %w", err)
	}
	return count, nil
}
