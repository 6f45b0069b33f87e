package auth

import (
	"context"

	"github.com/phed-ledger/internal/domain/principal"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches the verified caller to ctx
func WithPrincipal(ctx context.Context, p *principal.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the verified caller, if any
func PrincipalFrom(ctx context.Context) (*principal.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*principal.Principal)
	return p, ok && p != nil
}

// ActorFrom returns the audit reference of the caller, or "" for unauthenticated contexts
func ActorFrom(ctx context.Context) string {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.Ref()
	}
	return ""
}
