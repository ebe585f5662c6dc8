package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a single rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter consumes one request from the budget identified by key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// unlimited is returned when limiting is disabled or a backend fails open.
func unlimited(burst int) Result {
	return Result{Allowed: true, Remaining: burst}
}
