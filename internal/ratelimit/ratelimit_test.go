package ratelimit_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/codexa/internal/ratelimit"
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func TestRedis_Allow(t *testing.T) {
	clk := newClock()
	l := makeRedisLimiter(t, ratelimit.Config{Limit: 2, Window: time.Minute, Now: clk.Now})
	ctx := context.Background()

	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	clk.Advance(10 * time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	clk.Advance(10 * time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter, "should wait until the oldest request leaves the window")

	d, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys should be counted separately")

	clk.Advance(41 * time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "the first request should have slid out of the window")
	assert.Equal(t, 0, d.Remaining, "rejected requests should not be counted")
}

func TestLocal_Allow(t *testing.T) {
	clk := newClock()
	l, err := ratelimit.NewLocal(ratelimit.Config{Limit: 2, Window: time.Minute, Now: clk.Now})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should fit the burst", i)
	}

	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(30*time.Second), float64(d.RetryAfter), float64(time.Millisecond))

	clk.Advance(31 * time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "one token should have been refilled")
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := map[string]ratelimit.Config{
		"zero limit":  {Limit: 0, Window: time.Minute},
		"zero window": {Limit: 1},
	}

	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ratelimit.NewLocal(c)
			require.Error(t, err)

			_, err = ratelimit.NewRedis(nil, "test", c)
			require.Error(t, err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := map[string]struct {
		limiter    ratelimit.Limiter
		wantStatus int
		wantRetry  string
	}{
		"allowed": {
			limiter:    fakeLimiter{d: ratelimit.Decision{Allowed: true, Remaining: 3}},
			wantStatus: http.StatusOK,
		},
		"rejected": {
			limiter:    fakeLimiter{d: ratelimit.Decision{RetryAfter: 1500 * time.Millisecond}},
			wantStatus: http.StatusTooManyRequests,
			wantRetry:  "2",
		},
		"limiter failure fails open": {
			limiter:    fakeLimiter{err: stderrors.New("redis down")},
			wantStatus: http.StatusOK,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := gin.New()
			e.Use(ratelimit.Middleware(tt.limiter, ratelimit.ByClientIP))
			e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantRetry, w.Header().Get("Retry-After"))
		})
	}
}

type fakeLimiter struct {
	d   ratelimit.Decision
	err error
}

func (f fakeLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return f.d, f.err
}

func makeRedisLimiter(t *testing.T, c ratelimit.Config) *ratelimit.Redis {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { rc.Close() })

	l, err := ratelimit.NewRedis(rc, "test", c)
	require.NoError(t, err)
	return l
}
