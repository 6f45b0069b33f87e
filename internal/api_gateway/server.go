package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phed-ledger/internal/api_gateway/handler"
	"github.com/phed-ledger/internal/api_gateway/middleware"
	"github.com/phed-ledger/internal/api_gateway/service"
	"github.com/phed-ledger/internal/config"
	"github.com/phed-ledger/internal/domain/ledger"
	"github.com/phed-ledger/internal/domain/principal"
	"github.com/phed-ledger/internal/platform/auth"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger          *slog.Logger  // For structured logging
	httpServer      *http.Server  // Underlying HTTP server
	httpRouter      *gin.Engine   // Gin router instance
	shutdownTimeout time.Duration // Upper bound for draining in-flight requests
}

// NewServer creates and configures a new HTTP server in front of the ledger service
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	ledgerService service.LedgerService,
	verifier *auth.TokenVerifier,
	principals principal.Repository,
) (*Server, error) {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	writeKinds := make([]principal.Kind, 0, len(cfg.Auth.WriteKinds))
	for _, k := range cfg.Auth.WriteKinds {
		kind, err := principal.ParseKind(k)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_WRITE_KINDS: %w", err)
		}
		writeKinds = append(writeKinds, kind)
	}

	guard := routeAuth{
		read:  middleware.Authenticate(log, verifier, principals, cfg.Auth.TokenHeader),
		write: middleware.Authenticate(log, verifier, principals, cfg.Auth.TokenHeader, writeKinds...),
	}

	httpRouter := gin.New()

	assetHandler := handler.NewLedgerHandler(log, ledger.KindAsset, ledgerService)
	inventoryHandler := handler.NewLedgerHandler(log, ledger.KindInventory, ledgerService)

	setupRouter(log, httpRouter, guard, assetHandler, inventoryHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}

// Handler exposes the configured router
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, bounded by the shutdown timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
