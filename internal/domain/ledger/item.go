// Package ledger models quantity-tracked items and their append-only audit trail.
package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Kind separates the name namespaces of ledger items
type Kind string

const (
	KindAsset     Kind = "ASSET"
	KindInventory Kind = "INVENTORY"
)

// DefaultInitialDescription is recorded on the baseline entry when creation carries no description
const DefaultInitialDescription = "initial"

// Valid reports whether k is a known item kind
func (k Kind) Valid() bool {
	return k == KindAsset || k == KindInventory
}

// Entry is one step of an item's audit trail
type Entry struct {
	QuantityAdded   int64     `json:"quantityAdded" bson:"quantity_added"`
	UpdatedQuantity int64     `json:"updatedQuantity" bson:"updated_quantity"`
	Description     string    `json:"description" bson:"description"`
	RecordedAt      time.Time `json:"recordedAt" bson:"recorded_at"`
	RecordedBy      string    `json:"recordedBy,omitempty" bson:"recorded_by,omitempty"`
}

// Item is a named, quantity-tracking record carrying its complete history
type Item struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	Kind      Kind      `json:"kind" bson:"kind"`
	Name      string    `json:"name" bson:"name"`
	NameKey   string    `json:"-" bson:"name_key"`
	Category  string    `json:"category,omitempty" bson:"category,omitempty"`
	Quantity  int64     `json:"quantity" bson:"quantity"`
	History   []Entry   `json:"history" bson:"history"`
	Version   int       `json:"version" bson:"version"` // For optimistic locking
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// NameKey folds a name for case-insensitive uniqueness and lookup.
func NameKey(name string) string {
	return cases.Fold().String(name)
}

// ValidateName rejects empty and whitespace-only names
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidArgument{Field: "name", Reason: "must not be empty"}
	}
	return nil
}

// ValidateDescription rejects empty and whitespace-only descriptions
func ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return ErrInvalidArgument{Field: "description", Reason: "is required when adding or editing quantity"}
	}
	return nil
}

// NewItem creates an item whose history is seeded with a single baseline entry.
func NewItem(kind Kind, name, category string, initialQuantity int64, description, actor string) (*Item, error) {
	if !kind.Valid() {
		return nil, ErrInvalidArgument{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if initialQuantity < 0 {
		return nil, ErrInvalidArgument{Field: "quantity", Reason: "initial quantity must not be negative"}
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultInitialDescription
	}
	if kind == KindAsset {
		category = ""
	}

	now := time.Now().UTC()
	return &Item{
		ID:       uuid.New(),
		Kind:     kind,
		Name:     name,
		NameKey:  NameKey(name),
		Category: category,
		Quantity: initialQuantity,
		History: []Entry{{
			QuantityAdded:   initialQuantity,
			UpdatedQuantity: initialQuantity,
			Description:     description,
			RecordedAt:      now,
			RecordedBy:      actor,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyDelta appends an entry for delta and moves the quantity to the new total.
// The item is left untouched when an error is returned.
func (i *Item) ApplyDelta(delta int64, description, actor string) error {
	if err := ValidateDescription(description); err != nil {
		return err
	}
	if (delta > 0 && i.Quantity > math.MaxInt64-delta) || (delta < 0 && i.Quantity < math.MinInt64-delta) {
		return ErrInvalidArgument{Field: "quantityToAdd", Reason: "quantity overflow"}
	}

	now := time.Now().UTC()
	updated := i.Quantity + delta
	i.History = append(i.History, Entry{
		QuantityAdded:   delta,
		UpdatedQuantity: updated,
		Description:     description,
		RecordedAt:      now,
		RecordedBy:      actor,
	})
	i.Quantity = updated
	i.UpdatedAt = now
	i.Version++
	return nil
}

// LastEntry returns the most recent audit entry
func (i *Item) LastEntry() (Entry, bool) {
	if len(i.History) == 0 {
		return Entry{}, false
	}
	return i.History[len(i.History)-1], true
}

// VerifyHistory checks that every entry extends the previous total by its delta
// and that the last total equals the current quantity.
func (i *Item) VerifyHistory() error {
	if len(i.History) == 0 {
		return ErrCorruptHistory{ItemID: i.ID, Index: 0, Reason: "history is empty"}
	}
	var running int64
	for idx, e := range i.History {
		running += e.QuantityAdded
		if e.UpdatedQuantity != running {
			return ErrCorruptHistory{
				ItemID: i.ID,
				Index:  idx,
				Reason: fmt.Sprintf("updated quantity %d, expected %d", e.UpdatedQuantity, running),
			}
		}
	}
	if running != i.Quantity {
		return ErrCorruptHistory{
			ItemID: i.ID,
			Index:  len(i.History) - 1,
			Reason: fmt.Sprintf("quantity %d does not match history total %d", i.Quantity, running),
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing the history slice
func (i *Item) Clone() *Item {
	c := *i
	c.History = make([]Entry, len(i.History))
	copy(c.History, i.History)
	return &c
}
