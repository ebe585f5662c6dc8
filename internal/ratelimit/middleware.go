package ratelimit

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// Middleware limits requests per authenticated actor, or per client IP for
// anonymous routes. It must run after the auth middleware to see the actor.
func Middleware(limiter Limiter, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		key := "ip:" + c.IP()
		if actor, ok := auth.ActorFromContext(c); ok {
			key = "user:" + actor.ID
		}

		result, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			return c.Next()
		}
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
			logger.Info("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
				zap.Duration("retry_after", result.RetryAfter))
			return apperrors.NewRateLimited("rate limit exceeded")
		}
		return c.Next()
	}
}
