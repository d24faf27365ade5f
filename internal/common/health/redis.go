package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker reports unhealthy when the keyed store stops answering pings.
type RedisChecker struct {
	db      redis.UniversalClient
	timeout time.Duration
}

func NewRedisChecker(db redis.UniversalClient) *RedisChecker {
	return &RedisChecker{db: db, timeout: 2 * time.Second}
}

func (c *RedisChecker) Check() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.db.Ping(ctx).Err()
}
