package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phed-ledger/internal/domain/event"
)

// MockArchiveService mocks the ArchiveService interface
type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) ArchiveEvent(ctx context.Context, ev *event.LedgerEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func TestWorkerPoolArchiveService_ArchiveEvent(t *testing.T) {
	tests := []struct {
		name        string
		baseErr     error
		expectedErr error
	}{
		{name: "successful archive"},
		{name: "archive error", baseErr: errors.New("archive error"), expectedErr: errors.New("archive error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &MockArchiveService{}
			svc, err := NewWorkerPoolArchiveService(base, WorkerPoolConfig{Size: 2}, newTestLogger())
			require.NoError(t, err)
			defer svc.Shutdown()

			ev := newTestEvent(t)
			base.On("ArchiveEvent", mock.Anything, mock.MatchedBy(func(got *event.LedgerEvent) bool {
				return got.EventID == ev.EventID
			})).Return(tt.baseErr).Once()

			err = svc.ArchiveEvent(context.Background(), ev)
			if tt.expectedErr != nil {
				assert.EqualError(t, err, tt.expectedErr.Error())
			} else {
				assert.NoError(t, err)
			}
			base.AssertExpectations(t)
		})
	}
}

// slowArchive blocks each call until release is closed
type slowArchive struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (s *slowArchive) ArchiveEvent(ctx context.Context, _ *event.LedgerEvent) error {
	n := s.inFlight.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-s.release
	s.inFlight.Add(-1)
	return nil
}

func TestWorkerPoolArchiveService_BoundsConcurrency(t *testing.T) {
	base := &slowArchive{release: make(chan struct{})}
	svc, err := NewWorkerPoolArchiveService(base, WorkerPoolConfig{Size: 2}, newTestLogger())
	require.NoError(t, err)
	defer svc.Shutdown()
	assert.Equal(t, 2, svc.Capacity())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		ev := newTestEvent(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.ArchiveEvent(context.Background(), ev))
		}()
	}

	require.Eventually(t, func() bool { return base.inFlight.Load() == 2 }, time.Second, time.Millisecond)
	close(base.release)
	wg.Wait()

	assert.LessOrEqual(t, base.peak.Load(), int32(2))
}

func TestWorkerPoolArchiveService_ContextCanceled(t *testing.T) {
	base := &slowArchive{release: make(chan struct{})}
	svc, err := NewWorkerPoolArchiveService(base, WorkerPoolConfig{Size: 1}, newTestLogger())
	require.NoError(t, err)
	defer func() {
		close(base.release)
		svc.Shutdown()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, svc.ArchiveEvent(ctx, newTestEvent(t)), context.DeadlineExceeded)
}
