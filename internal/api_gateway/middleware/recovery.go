package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/phed-ledger/internal/platform/auth"
)

// Recovery turns a panic in a ledger route into a logged 500. The log carries the
// matched route, the acting principal and the correlation id, so a half-applied
// request can be traced to the caller. A response already on the wire is left as is.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.Error("Panic recovered",
				"error", r,
				"stack", string(debug.Stack()),
				"route", c.FullPath(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"actor", auth.ActorFrom(c.Request.Context()),
				"correlation_id", GetCorrelationID(c),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
		}()

		c.Next()
	}
}

// abortWithError writes the standard error envelope and stops the handler chain.
// It mirrors handler.Response, which this package cannot import.
func abortWithError(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
