// Package ratelimit throttles clients with a sliding window shared through Redis, or a per-process
// token bucket when no shared store is configured.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/codexa/internal/errors"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long a rejected client should wait. Zero when allowed.
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type Config struct {
	Limit  int
	Window time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("ratelimit: limit must be positive, got %d", c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: window must be positive, got %s", c.Window)
	}
	return nil
}

func (c Config) now() func() time.Time {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}

// KeyFunc derives the bucket a request is counted in.
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per client address.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// Middleware rejects requests over the limit with 429. Limiter failures let the request through.
func Middleware(l Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		d, err := l.Allow(ctx, key(c))
		if err != nil {
			slog.WarnContext(ctx, "ratelimit: allow failed, letting request through", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			e := errors.New(errors.CodeResourceExhausted, errors.WithMessagef("too many requests"))
			c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
			return
		}

		c.Next()
	}
}
