package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepInterval = time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is an in-process token bucket per key, refilled at Limit tokens per Window.
type Local struct {
	limit int
	every rate.Limit
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func NewLocal(c Config) (*Local, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	idle := 3 * c.Window
	if idle < sweepInterval {
		idle = sweepInterval
	}

	now := c.now()
	return &Local{
		limit:     c.Limit,
		every:     rate.Every(c.Window / time.Duration(c.Limit)),
		idle:      idle,
		now:       now,
		visitors:  make(map[string]*visitor),
		lastSweep: now(),
	}, nil
}

func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.limit)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: d}, nil
	}

	return Decision{Allowed: true, Remaining: int(v.limiter.TokensAt(now))}, nil
}

// sweep drops idle visitors, at most once per sweepInterval. Callers hold l.mu.
func (l *Local) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now

	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, k)
		}
	}
}
