// Package auth verifies the HS256 tokens issued by the registration collaborators and
// carries the resolved principal through request contexts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/phed-ledger/internal/domain/principal"
)

var (
	ErrMissingToken = errors.New("authentication token is missing")
	ErrInvalidToken = errors.New("authentication token is invalid")
)

// Claims is the token body: the registered claims plus the principal kind
type Claims struct {
	jwt.Claims
	Kind string `json:"kind"`
}

// Identity is what a valid token asserts, before the registry is consulted
type Identity struct {
	Subject   uuid.UUID
	Kind      principal.Kind
	ExpiresAt time.Time
}

// TokenVerifier checks signature, expiry and shape of bearer tokens
type TokenVerifier struct {
	key    []byte
	leeway time.Duration
	now    func() time.Time
}

func NewTokenVerifier(secret string, leeway time.Duration) *TokenVerifier {
	return &TokenVerifier{key: []byte(secret), leeway: leeway, now: time.Now}
}

func (v *TokenVerifier) Verify(raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims Claims
	if err := tok.Claims(v.key, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Expiry == nil {
		return nil, fmt.Errorf("%w: exp claim is required", ErrInvalidToken)
	}
	if err := claims.ValidateWithLeeway(jwt.Expected{Time: v.now()}, v.leeway); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}
	kind, err := principal.ParseKind(claims.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &Identity{
		Subject:   subject,
		Kind:      kind,
		ExpiresAt: claims.Expiry.Time(),
	}, nil
}

// Issue signs a token for subject. The ledger never logs anyone in; this exists for
// operational tooling and tests that need a token the verifier accepts.
func (v *TokenVerifier) Issue(subject uuid.UUID, kind principal.Kind, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: v.key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	now := v.now()
	claims := Claims{
		Claims: jwt.Claims{
			Subject:  subject.String(),
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: string(kind),
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
