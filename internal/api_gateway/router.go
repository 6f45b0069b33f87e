package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phed-ledger/internal/api_gateway/handler"
	"github.com/phed-ledger/internal/api_gateway/middleware"
)

// routeAuth holds the middlewares guarding read and write routes
type routeAuth struct {
	read  gin.HandlerFunc
	write gin.HandlerFunc
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	guard routeAuth,
	assetHandler *handler.LedgerHandler,
	inventoryHandler *handler.LedgerHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		registerItemRoutes(v1.Group("/assets"), guard, assetHandler)
		registerItemRoutes(v1.Group("/inventory"), guard, inventoryHandler)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}

func registerItemRoutes(g *gin.RouterGroup, guard routeAuth, h *handler.LedgerHandler) {
	g.POST("", guard.write, h.Create)
	g.PUT("/quantity", guard.write, h.ApplyDelta)
	g.GET("", guard.read, h.List)
	g.GET("/:name", guard.read, h.Get)
	g.GET("/:name/events", guard.read, h.ListEvents)
}
