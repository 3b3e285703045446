package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

// RateLimiter caps requests per user and scope in fixed windows counted in
// Redis. Each window gets its own key, so counters never need resetting.
type RateLimiter struct {
	redis  redis.Cmdable
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter creates a limiter. A nil client disables limiting.
func NewRateLimiter(redisClient redis.Cmdable, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{redis: redisClient, logger: logging.OrNop(logger), now: time.Now}
}

// Limit allows limit requests per window for the authenticated user
func (rl *RateLimiter) Limit(scope string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if rl.redis == nil || userID == "" {
			return c.Next()
		}

		now := rl.now()
		start := now.Truncate(window)
		key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, userID, start.Unix())

		count, err := rl.hit(c.UserContext(), key, window)
		if err != nil {
			rl.logger.Warn("rate limit unavailable, allowing request", zap.String("scope", scope), zap.Error(err))
			return c.Next()
		}

		remaining := limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(limit) {
			retry := start.Add(window).Sub(now)
			c.Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			return response.RateLimited(c)
		}
		return c.Next()
	}
}

// hit counts one request and arms the key's expiry in the same transaction
func (rl *RateLimiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := rl.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// DispatchLimit caps render, blend and master generation per hour
func (rl *RateLimiter) DispatchLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("dispatch", maxPerHour, time.Hour)
}

// ShareLimit caps share and copy requests per hour
func (rl *RateLimiter) ShareLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("share", maxPerHour, time.Hour)
}
