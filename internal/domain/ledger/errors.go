package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidArgument indicates a missing or malformed required field
type ErrInvalidArgument struct {
	Field  string
	Reason string
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is implements the errors.Is interface for ErrInvalidArgument
func (e ErrInvalidArgument) Is(target error) bool {
	t, ok := target.(ErrInvalidArgument)
	if !ok {
		return false
	}
	// An empty target field matches any invalid argument
	return t.Field == "" || t.Field == e.Field
}

// ErrDuplicateItem indicates a case-insensitive name collision within a kind
type ErrDuplicateItem struct {
	Kind Kind
	Name string
}

func (e ErrDuplicateItem) Error() string {
	return fmt.Sprintf("%s item already exists: %s", e.Kind, e.Name)
}

// Is implements the errors.Is interface for ErrDuplicateItem
func (e ErrDuplicateItem) Is(target error) bool {
	t, ok := target.(ErrDuplicateItem)
	if !ok {
		return false
	}
	if t.Name == "" {
		return true
	}
	return t.Kind == e.Kind && NameKey(t.Name) == NameKey(e.Name)
}

// ErrItemNotFound indicates that no item of the kind matches the name
type ErrItemNotFound struct {
	Kind Kind
	Name string
}

func (e ErrItemNotFound) Error() string {
	return fmt.Sprintf("%s item not found: %s", e.Kind, e.Name)
}

// Is implements the errors.Is interface for ErrItemNotFound
func (e ErrItemNotFound) Is(target error) bool {
	t, ok := target.(ErrItemNotFound)
	if !ok {
		return false
	}
	if t.Name == "" {
		return true
	}
	return t.Kind == e.Kind && NameKey(t.Name) == NameKey(e.Name)
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	Kind Kind
	Name string
}

func (e ErrConcurrentModification) Error() string {
	return fmt.Sprintf("concurrent modification detected for %s item: %s", e.Kind, e.Name)
}

// Is implements the errors.Is interface for ErrConcurrentModification
func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	if t.Name == "" {
		return true
	}
	return t.Kind == e.Kind && NameKey(t.Name) == NameKey(e.Name)
}

// ErrStoreUnavailable wraps a persistence failure. It is always surfaced to the caller.
type ErrStoreUnavailable struct {
	Op  string
	Err error
}

func (e ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("ledger store unavailable during %s: %v", e.Op, e.Err)
}

func (e ErrStoreUnavailable) Unwrap() error {
	return e.Err
}

// Is implements the errors.Is interface for ErrStoreUnavailable
func (e ErrStoreUnavailable) Is(target error) bool {
	t, ok := target.(ErrStoreUnavailable)
	if !ok {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// ErrCorruptHistory indicates a stored or computed history that breaks the running-total rule
type ErrCorruptHistory struct {
	ItemID uuid.UUID
	Index  int
	Reason string
}

func (e ErrCorruptHistory) Error() string {
	return fmt.Sprintf("corrupt history for item %s at entry %d: %s", e.ItemID, e.Index, e.Reason)
}
