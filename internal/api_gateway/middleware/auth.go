package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/phed-ledger/internal/domain/principal"
	"github.com/phed-ledger/internal/platform/auth"
)

// PrincipalKey is the gin context key of the verified principal
const PrincipalKey = "principal"

// Authenticate verifies the token in header, resolves its subject in the principal
// registry and admits the request only for the given kinds. With no kinds every
// verified principal is admitted.
func Authenticate(
	logger *slog.Logger,
	verifier *auth.TokenVerifier,
	principals principal.Repository,
	header string,
	allowedKinds ...principal.Kind,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.Verify(c.GetHeader(header))
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) {
				abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication token is missing")
				return
			}
			logger.Warn("Rejected authentication token", "error", err, "correlation_id", GetCorrelationID(c))
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication token is invalid or expired")
			return
		}

		if len(allowedKinds) > 0 && !slices.Contains(allowedKinds, identity.Kind) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "This operation is not permitted for "+string(identity.Kind))
			return
		}

		p, err := principals.GetByID(c.Request.Context(), identity.Kind, identity.Subject)
		if err != nil {
			var notFound principal.ErrPrincipalNotFound
			if errors.As(err, &notFound) {
				abortWithError(c, http.StatusNotFound, "NOT_FOUND", notFound.Error())
				return
			}
			logger.Error("Failed to resolve principal", "kind", identity.Kind, "id", identity.Subject, "error", err)
			abortWithError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Principal registry is temporarily unavailable")
			return
		}

		if !p.Active() {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Principal is not active")
			return
		}

		c.Set(PrincipalKey, p)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))

		c.Next()
	}
}
