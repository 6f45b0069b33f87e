package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the id in and out of the ledger API
	CorrelationIDHeader = "X-Correlation-ID"

	// CorrelationIDKey is the gin context key, also used as the log attribute name
	CorrelationIDKey = "correlation_id"

	maxCorrelationIDLength = 128
)

type correlationKey struct{}

// CorrelationID tags each request with an id, reusing the caller's when it is
// safe to echo and log. The id is put on the gin context and on the request
// context, so the ledger service can log it without depending on gin.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if !validCorrelationID(correlationID) {
			correlationID = uuid.NewString()
		}

		c.Header(CorrelationIDHeader, correlationID)
		c.Set(CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), correlationKey{}, correlationID))

		c.Next()
	}
}

// validCorrelationID accepts short printable ASCII ids only
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}

// GetCorrelationID returns the request's correlation id from the gin context,
// falling back to the request context.
func GetCorrelationID(c *gin.Context) string {
	if v, exists := c.Get(CorrelationIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	if c.Request != nil {
		return CorrelationIDFrom(c.Request.Context())
	}
	return ""
}

// CorrelationIDFrom retrieves the correlation ID from a request context
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
