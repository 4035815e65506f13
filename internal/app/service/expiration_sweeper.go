package service

import (
	"context"
	"sync"
	"time"

	"github.com/sifan077/utmlink/internal/app/repository"
	infraprom "github.com/sifan077/utmlink/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultSweepInterval = 24 * time.Hour
	sweepBatchSize       = 500
)

// ExpirationSweeper periodically moves active links whose expiry has passed
// to Expired. Running it twice in a row changes nothing the second time.
type ExpirationSweeper struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	metrics  *infraprom.Metrics
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// NewExpirationSweeper creates a sweeper; a non-positive interval selects the daily default.
func NewExpirationSweeper(logger *zap.Logger, links repository.LinkRepository, metrics *infraprom.Metrics, interval time.Duration) *ExpirationSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ExpirationSweeper{
		logger:   logger,
		links:    links,
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
	}
}

// Sweep transitions every due link and returns how many changed.
func (s *ExpirationSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	total := 0

	for {
		due, err := s.links.ListExpiredActive(ctx, now, sweepBatchSize)
		if err != nil {
			return total, storageError("list expired links", err)
		}

		changed := 0
		for _, link := range due {
			ok, err := s.links.MarkExpired(ctx, link.Code, now)
			if err != nil {
				return total, storageError("mark link expired", err)
			}
			if ok {
				changed++
			}
		}
		total += changed

		// A short page, or a page where nothing moved, means no more work.
		if len(due) < sweepBatchSize || changed == 0 {
			break
		}
	}

	s.metrics.Swept(total)
	if total > 0 {
		s.logger.Info("expired links swept", zap.Int("count", total), zap.Time("now", now))
	}
	return total, nil
}

// Start begins the periodic sweep. It is a no-op when already running.
func (s *ExpirationSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		return
	}
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stopChan, s.done)
}

// Stop halts the periodic sweep and waits for an in-flight sweep to finish.
func (s *ExpirationSweeper) Stop() {
	s.mu.Lock()
	stop, done := s.stopChan, s.done
	s.stopChan, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *ExpirationSweeper) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("expiration sweep failed", zap.Error(err))
			}
		case <-stop:
			s.logger.Info("expiration sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("expiration sweeper stopped", zap.Error(ctx.Err()))
			return
		}
	}
}
