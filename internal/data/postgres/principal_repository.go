package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/phed-ledger/internal/domain/principal"
	"github.com/phed-ledger/internal/platform/persistence"
)

// PrincipalRepository reads the registry rows maintained by the registration services
type PrincipalRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewPrincipalRepository(logger *slog.Logger, db *persistence.PostgresDB) principal.Repository {
	return &PrincipalRepository{querier: db.Pool(), logger: logger}
}

func (r *PrincipalRepository) GetByID(ctx context.Context, kind principal.Kind, id uuid.UUID) (*principal.Principal, error) {
	query := `
		SELECT id, kind, name, mobile, status, created_at
		FROM principals
		WHERE kind = $1 AND id = $2
	`
	var (
		p       principal.Principal
		rawKind string
		status  int16
	)
	err := r.querier.QueryRow(ctx, query, string(kind), id).Scan(&p.ID, &rawKind, &p.Name, &p.Mobile, &status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, principal.ErrPrincipalNotFound{Kind: kind, ID: id}
		}
		r.logger.Error("failed to get principal", "kind", kind, "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}
	p.Kind = principal.Kind(rawKind)
	p.Status = principal.Status(status)
	return &p, nil
}
