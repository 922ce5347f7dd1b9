package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a sliding window log kept in a sorted set per key, scored by request time in microseconds.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(r redis.UniversalClient, prefix string, c Config) (*Redis, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	return &Redis{
		redis:  r,
		prefix: prefix,
		limit:  c.Limit,
		window: c.Window,
		now:    c.now(),
	}, nil
}

func (l *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	var (
		k      = fmt.Sprintf("%s:ratelimit:%s", l.prefix, key)
		now    = l.now()
		member = uuid.NewString()
		cutoff = strconv.FormatInt(now.Add(-l.window).UnixMicro(), 10)
	)

	// The request is recorded before counting and withdrawn when over the limit.
	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	card := pipe.ZCard(ctx, k)
	oldest := pipe.ZRangeWithScores(ctx, k, 0, 0)
	pipe.PExpire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: %w", err)
	}

	n := int(card.Val())
	if n <= l.limit {
		return Decision{Allowed: true, Remaining: l.limit - n}, nil
	}

	if err := l.redis.ZRem(ctx, k, member).Err(); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: withdraw: %w", err)
	}

	retry := l.window
	if zs := oldest.Val(); len(zs) > 0 {
		first := time.UnixMicro(int64(zs[0].Score))
		retry = first.Add(l.window).Sub(now)
	}

	return Decision{Allowed: false, RetryAfter: retry}, nil
}
