package service

import (
	"context"
	"time"

	"github.com/sifan077/utmlink/internal/app/repository"
	"go.uber.org/zap"
)

// RateWindow is the sliding window over which creations are counted.
const RateWindow = time.Hour

// LimitFunc returns the current per-principal creation limit.
type LimitFunc func(ctx context.Context) (int, error)

// RateLimiter bounds link creation per principal over a sliding hour. The
// check is advisory: concurrent creations may both pass.
type RateLimiter struct {
	links  repository.LinkRepository
	limit  LimitFunc
	logger *zap.Logger
	now    func() time.Time
}

func NewRateLimiter(links repository.LinkRepository, limit LimitFunc, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{links: links, limit: limit, logger: logger, now: time.Now}
}

// Allow reports whether principal may create n more links. A missing or
// unreadable limit allows the request.
func (r *RateLimiter) Allow(ctx context.Context, principal string, n int) (bool, error) {
	if r.limit == nil {
		r.logger.Warn("rate limit not configured, allowing request", zap.String("principal", principal))
		return true, nil
	}
	limit, err := r.limit(ctx)
	if err != nil {
		r.logger.Warn("rate limit unreadable, allowing request",
			zap.String("principal", principal),
			zap.Error(err),
		)
		return true, nil
	}
	if limit < 1 {
		r.logger.Warn("rate limit invalid, allowing request",
			zap.String("principal", principal),
			zap.Int("limit", limit),
		)
		return true, nil
	}

	count, err := r.links.CountByOwnerSince(ctx, principal, r.now().Add(-RateWindow))
	if err != nil {
		return false, storageError("count recent links", err)
	}
	return count+int64(n) <= int64(limit), nil
}
