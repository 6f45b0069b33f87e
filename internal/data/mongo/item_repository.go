// Package mongo provides the MongoDB ledger store and the ledger event archive.
package mongo

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phed-ledger/internal/domain/ledger"
)

const (
	// ItemCollectionName holds one document per item with its history embedded
	ItemCollectionName = "ledger_items"
)

// ItemIndexes must exist before the store serves writes; the unique index is what
// rejects case-insensitive duplicates.
func ItemIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "name_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("kind_name_key_uq"),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "category", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("kind_category_created"),
		},
	}
}

// ItemRepository implements ledger.Repository for MongoDB
type ItemRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewItemRepository(logger *slog.Logger, db *mongo.Database) ledger.Repository {
	return &ItemRepository{db: db, logger: logger}
}

func (r *ItemRepository) collection() *mongo.Collection {
	return r.db.Collection(ItemCollectionName)
}

func (r *ItemRepository) Create(ctx context.Context, item *ledger.Item) error {
	_, err := r.collection().InsertOne(ctx, item)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateItem{Kind: item.Kind, Name: item.Name}
		}
		r.logger.Error("failed to create ledger item", "kind", item.Kind, "name", item.Name, "error", err)
		return ledger.ErrStoreUnavailable{Op: "create", Err: err}
	}
	return nil
}

func (r *ItemRepository) FindByName(ctx context.Context, kind ledger.Kind, name string) (*ledger.Item, error) {
	filter := bson.M{"kind": kind, "name_key": ledger.NameKey(name)}

	var item ledger.Item
	if err := r.collection().FindOne(ctx, filter).Decode(&item); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrItemNotFound{Kind: kind, Name: name}
		}
		r.logger.Error("failed to find ledger item", "kind", kind, "name", name, "error", err)
		return nil, ledger.ErrStoreUnavailable{Op: "find", Err: err}
	}
	return &item, nil
}

// Save replaces the document only while it still carries the previous version
func (r *ItemRepository) Save(ctx context.Context, item *ledger.Item) error {
	filter := bson.M{"_id": item.ID, "version": item.Version - 1}

	result, err := r.collection().ReplaceOne(ctx, filter, item)
	if err != nil {
		r.logger.Error("failed to save ledger item", "item_id", item.ID.String(), "error", err)
		return ledger.ErrStoreUnavailable{Op: "save", Err: err}
	}
	if result.MatchedCount == 0 {
		return ledger.ErrConcurrentModification{Kind: item.Kind, Name: item.Name}
	}
	return nil
}

func (r *ItemRepository) List(ctx context.Context, kind ledger.Kind, filter ledger.ListFilter) ([]*ledger.Item, error) {
	query := bson.M{"kind": kind}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection().Find(ctx, query, opts)
	if err != nil {
		r.logger.Error("failed to list ledger items", "kind", kind, "error", err)
		return nil, ledger.ErrStoreUnavailable{Op: "list", Err: err}
	}
	defer cursor.Close(ctx)

	items := make([]*ledger.Item, 0)
	if err := cursor.All(ctx, &items); err != nil {
		r.logger.Error("failed to decode ledger items", "kind", kind, "error", err)
		return nil, ledger.ErrStoreUnavailable{Op: "list", Err: err}
	}
	return items, nil
}
