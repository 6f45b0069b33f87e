package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/phed-ledger/internal/domain/event"
)

// WorkerPoolArchiveService runs archive writes on a bounded goroutine pool. The
// consumer calls it from one goroutine per partition; the pool caps how many of
// those writes reach MongoDB at once.
type WorkerPoolArchiveService struct {
	baseService ArchiveService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolArchiveService(
	baseService ArchiveService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolArchiveService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolArchiveService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ArchiveEvent submits the write to the pool and waits for its result,
// or for ctx to end first.
func (s *WorkerPoolArchiveService) ArchiveEvent(ctx context.Context, ev *event.LedgerEvent) error {
	resultChan := make(chan error, 1)
	evCopy := *ev

	if err := s.pool.Submit(func() {
		resultChan <- s.baseService.ArchiveEvent(ctx, &evCopy)
	}); err != nil {
		s.logger.Error("Failed to submit event to worker pool", "event_id", ev.EventID.String(), "error", err)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolArchiveService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolArchiveService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolArchiveService) Capacity() int {
	return s.pool.Cap()
}
