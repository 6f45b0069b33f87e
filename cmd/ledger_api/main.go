package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/phed-ledger/internal/api_gateway"
	"github.com/phed-ledger/internal/api_gateway/service"
	"github.com/phed-ledger/internal/config"
	"github.com/phed-ledger/internal/data/mongo"
	"github.com/phed-ledger/internal/data/postgres"
	"github.com/phed-ledger/internal/data/retrying"
	"github.com/phed-ledger/internal/domain/ledger"
	"github.com/phed-ledger/internal/logger"
	"github.com/phed-ledger/internal/platform/auth"
	"github.com/phed-ledger/internal/platform/keylock"
	"github.com/phed-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("Starting ledger API",
		"store_driver", cfg.Store.Driver,
		"lock_driver", cfg.Lock.Driver,
	)

	// Postgres always backs the principal registry
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// MongoDB always backs the event archive
	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}
	if err := mongoDB.EnsureIndexes(appCtx, mongo.EventCollectionName, mongo.EventIndexes()...); err != nil {
		log.Error("Failed to ensure event archive indexes", "error", err)
		os.Exit(1)
	}

	var store ledger.Repository
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		if err := mongoDB.EnsureIndexes(appCtx, mongo.ItemCollectionName, mongo.ItemIndexes()...); err != nil {
			log.Error("Failed to ensure ledger item indexes", "error", err)
			os.Exit(1)
		}
		store = mongo.NewItemRepository(log, mongoDB.Database())
	default:
		outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
		store = postgres.NewItemRepository(log, postgresDB, outboxRepo)
	}
	store = retrying.New(log, store, cfg.Ledger.StoreRetryAttempts)

	var locker keylock.Locker = keylock.NewLocal()
	var redisClient *redis.Client
	if cfg.Lock.Driver == config.LockDriverRedis {
		redisClient, err = persistence.NewRedisClient(appCtx, log, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		locker = keylock.NewRedis(log, redisClient, cfg.Lock.TTL, cfg.Lock.RetryInterval)
	}

	archiveRepo := mongo.NewEventArchiveRepository(log, mongoDB.Database())
	principalRepo := postgres.NewPrincipalRepository(log, postgresDB)
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Leeway)

	ledgerService := service.NewLedgerService(log, store, archiveRepo, locker, service.Options{
		MaxSaveAttempts: cfg.Ledger.MaxSaveAttempts,
		AllowNegative:   cfg.Ledger.AllowNegative,
	})

	server, err := api_gateway.NewServer(log, cfg, ledgerService, verifier, principalRepo)
	if err != nil {
		log.Error("Failed to initialize REST server", "error", err)
		os.Exit(1)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case serverErr = <-errChan:
		log.Error("Server error occurred", "error", serverErr)
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain requests before closing the stores they use
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", "error", err)
		}
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("Ledger API shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Ledger API shutdown completed successfully")
}
