// Package postgres provides the PostgreSQL ledger store: items with their history as JSONB,
// the transactional outbox that carries ledger events, and the principal registry lookup.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/domain/ledger"
	"github.com/phed-ledger/internal/domain/outbox"
	"github.com/phed-ledger/internal/platform/persistence"
)

// DB is the subset of *pgxpool.Pool the item store needs
type DB interface {
	persistence.Querier
	persistence.TxBeginner
}

// ItemRepository implements ledger.Repository. Every write also enqueues a ledger
// event in the same transaction.
type ItemRepository struct {
	db     DB
	outbox outbox.Repository
	logger *slog.Logger
}

func NewItemRepository(logger *slog.Logger, db *persistence.PostgresDB, outboxRepo outbox.Repository) ledger.Repository {
	return newItemRepository(logger, db.Pool(), outboxRepo)
}

func newItemRepository(logger *slog.Logger, db DB, outboxRepo outbox.Repository) *ItemRepository {
	return &ItemRepository{db: db, outbox: outboxRepo, logger: logger}
}

const itemColumns = `id, kind, name, name_key, category, quantity, history, version, created_at, updated_at`

// Create inserts the item. The unique (kind, name_key) index makes check and insert atomic.
func (r *ItemRepository) Create(ctx context.Context, item *ledger.Item) error {
	history, err := json.Marshal(item.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	err = persistence.RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO ledger_items (` + itemColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (kind, name_key) DO NOTHING
		`
		tag, err := tx.Exec(ctx, query,
			item.ID,
			string(item.Kind),
			item.Name,
			item.NameKey,
			item.Category,
			item.Quantity,
			history,
			item.Version,
			item.CreatedAt,
			item.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ledger.ErrDuplicateItem{Kind: item.Kind, Name: item.Name}
		}
		return r.enqueue(ctx, tx, item, event.TypeItemCreated)
	})
	if err != nil {
		return r.classify("create", item, err)
	}
	return nil
}

func (r *ItemRepository) FindByName(ctx context.Context, kind ledger.Kind, name string) (*ledger.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM ledger_items
		WHERE kind = $1 AND name_key = $2
	`
	item, err := scanItem(r.db.QueryRow(ctx, query, string(kind), ledger.NameKey(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrItemNotFound{Kind: kind, Name: name}
		}
		r.logger.Error("failed to find ledger item", "kind", kind, "name", name, "error", err)
		return nil, ledger.ErrStoreUnavailable{Op: "find", Err: err}
	}
	return item, nil
}

// Save overwrites the row guarded by the previous version
func (r *ItemRepository) Save(ctx context.Context, item *ledger.Item) error {
	history, err := json.Marshal(item.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	err = persistence.RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE ledger_items
			SET name = $1, category = $2, quantity = $3, history = $4, version = $5, updated_at = $6
			WHERE id = $7 AND version = $8
		`
		tag, err := tx.Exec(ctx, query,
			item.Name,
			item.Category,
			item.Quantity,
			history,
			item.Version,
			item.UpdatedAt,
			item.ID,
			item.Version-1,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ledger.ErrConcurrentModification{Kind: item.Kind, Name: item.Name}
		}
		return r.enqueue(ctx, tx, item, event.TypeQuantityAdjusted)
	})
	if err != nil {
		return r.classify("save", item, err)
	}
	return nil
}

// List returns items of kind ordered by creation, optionally narrowed to one category
func (r *ItemRepository) List(ctx context.Context, kind ledger.Kind, filter ledger.ListFilter) ([]*ledger.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM ledger_items
		WHERE kind = $1 AND ($2 = '' OR category = $2)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, string(kind), filter.Category)
	if err != nil {
		r.logger.Error("failed to list ledger items", "kind", kind, "error", err)
		return nil, ledger.ErrStoreUnavailable{Op: "list", Err: err}
	}
	defer rows.Close()

	items := make([]*ledger.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, ledger.ErrStoreUnavailable{Op: "list", Err: err}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.ErrStoreUnavailable{Op: "list", Err: err}
	}
	return items, nil
}

func (r *ItemRepository) enqueue(ctx context.Context, tx pgx.Tx, item *ledger.Item, eventType event.Type) error {
	ev, err := event.FromItem(item, eventType)
	if err != nil {
		return err
	}
	msg, err := outbox.NewMessage(ev)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return r.outbox.WithTx(tx).Create(ctx, msg)
}

// classify passes domain outcomes through and marks everything else as a store outage
func (r *ItemRepository) classify(op string, item *ledger.Item, err error) error {
	if errors.Is(err, ledger.ErrDuplicateItem{}) || errors.Is(err, ledger.ErrConcurrentModification{}) {
		return err
	}
	r.logger.Error("ledger store write failed", "op", op, "item_id", item.ID.String(), "error", err)
	return ledger.ErrStoreUnavailable{Op: op, Err: err}
}

func scanItem(row pgx.Row) (*ledger.Item, error) {
	var (
		item    ledger.Item
		kind    string
		history []byte
	)
	err := row.Scan(
		&item.ID,
		&kind,
		&item.Name,
		&item.NameKey,
		&item.Category,
		&item.Quantity,
		&history,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Kind = ledger.Kind(kind)
	if err := json.Unmarshal(history, &item.History); err != nil {
		return nil, fmt.Errorf("failed to decode history of item %s: %w", item.ID, err)
	}
	return &item, nil
}
