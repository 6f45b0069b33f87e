package components

import (
	"log/slog"

	"github.com/phed-ledger/internal/config"
	"github.com/phed-ledger/internal/domain/event"
	"github.com/phed-ledger/internal/event_relay/service"
)

// CreateArchiveService builds the archive service behind a worker pool. The
// returned shutdown releases the pool and is a no-op for the fallback.
func CreateArchiveService(
	archiveRepo event.ArchiveRepository,
	logger *slog.Logger,
	cfg *config.Config,
) (service.ArchiveService, func()) {
	baseService := service.NewArchiveService(archiveRepo, logger)
	if cfg.WorkerPool.Size <= 0 {
		logger.Warn("Worker pool disabled, archiving inline", "pool_size", cfg.WorkerPool.Size)
		return baseService, func() {}
	}

	workerPoolService, err := service.NewWorkerPoolArchiveService(
		baseService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool archive service, falling back to base service", "error", err)
		return baseService, func() {}
	}

	logger.Info("Created worker pool archive service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, workerPoolService.Shutdown
}
