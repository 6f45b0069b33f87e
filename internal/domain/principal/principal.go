// Package principal describes the authenticated actors that call the ledger.
package principal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownKind = errors.New("unknown principal kind")

// Kind identifies which registry a principal belongs to
type Kind string

const (
	KindGrampanchayat Kind = "grampanchayat"
	KindUser          Kind = "user"
	KindPhedUser      Kind = "phed_user"
)

// Status mirrors the registries' active flag
type Status int

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

// ParseKind converts a token or config value into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGrampanchayat:
		return KindGrampanchayat, nil
	case KindUser:
		return KindUser, nil
	case KindPhedUser:
		return KindPhedUser, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Principal is a verified caller
type Principal struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the principal may act
func (p *Principal) Active() bool {
	return p.Status == StatusActive
}

// Ref is the opaque actor reference recorded on audit entries
func (p *Principal) Ref() string {
	return string(p.Kind) + ":" + p.ID.String()
}

// Repository resolves principals registered by the external registries
type Repository interface {
	GetByID(ctx context.Context, kind Kind, id uuid.UUID) (*Principal, error)
}

// ErrPrincipalNotFound indicates a token subject without a registry record
type ErrPrincipalNotFound struct {
	Kind Kind
	ID   uuid.UUID
}

func (e ErrPrincipalNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
