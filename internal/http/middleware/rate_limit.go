package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Counter is the subset of the Redis API used for fixed-window counting.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig limits each client IP to 120 requests per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 120,
		Window:      time.Minute,
		KeyPrefix:   "utmlink:ratelimit",
	}
}

// RateLimit applies a per-IP fixed window counted in Redis. Redis failures
// let the request through.
func RateLimit(counter Counter, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		window := time.Now().Truncate(config.Window)
		key := config.KeyPrefix + ":" + c.IP() + ":" + strconv.FormatInt(window.Unix(), 10)

		count, err := counter.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit redis error, allowing request", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := counter.Expire(ctx, key, config.Window).Err(); err != nil {
				logger.Warn("rate limit expire failed", zap.String("key", key), zap.Error(err))
			}
		}

		remaining := max(0, config.MaxRequests-int(count))
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(window.Add(config.Window).Unix(), 10))

		if count > int64(config.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":     "too many requests",
				"errorKind": "RateLimitExceeded",
			})
		}

		return c.Next()
	}
}
