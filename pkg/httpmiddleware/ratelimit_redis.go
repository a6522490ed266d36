package httpmiddleware

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// RedisWindow is a fixed-window Limiter shared by all instances through
// Redis.
type RedisWindow struct {
	client redis.UniversalClient
	prefix string
	max    int
	period time.Duration
	now    func() time.Time
}

var _ Limiter = (*RedisWindow)(nil)

// NewRedisWindow allows max requests per period and key. Keys are stored
// under prefix.
func NewRedisWindow(client redis.UniversalClient, prefix string, max int, period time.Duration) *RedisWindow {
	return &RedisWindow{
		client: client,
		prefix: prefix,
		max:    max,
		period: period,
		now:    time.Now,
	}
}

// Allow increments the counter of the current window.
func (l *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	start := l.now().Truncate(l.period)
	k := l.prefix + "ratelimit:" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, l.period)
		return nil
	})
	if err != nil {
		return Decision{}, errors.Wrap(err, "count request")
	}

	n := int(incr.Val())
	return Decision{
		Allowed:   n <= l.max,
		Limit:     l.max,
		Remaining: max(l.max-n, 0),
		ResetAt:   start.Add(l.period),
	}, nil
}
