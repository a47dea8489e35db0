package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how stale a cached display name can be.
const DefaultCacheTTL = 10 * time.Minute

// RedisCache is a read-through Directory that keeps names in Redis in front
// of a slower source. A Redis outage degrades to direct lookups.
type RedisCache struct {
	client *redis.Client
	next   Directory
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisCache caches names resolved by next. A zero ttl uses
// DefaultCacheTTL.
func NewRedisCache(client *redis.Client, next Directory, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: "accounting:name:",
		logger: logger,
	}
}

// ResolveName implements Directory.
func (c *RedisCache) ResolveName(ctx context.Context, accountID string) (string, error) {
	key := c.prefix + accountID

	name, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return name, nil
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("identity: redis lookup failed",
			"account_id", accountID,
			"error", err,
		)
	}

	name, err = c.next.ResolveName(ctx, accountID)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, name, c.ttl).Err(); err != nil {
		c.logger.Warn("identity: redis store failed",
			"account_id", accountID,
			"error", err,
		)
	}
	return name, nil
}

// Invalidate drops the cached name for accountID.
func (c *RedisCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, c.prefix+accountID).Err(); err != nil {
		return fmt.Errorf("identity: invalidate %s: %w", accountID, err)
	}
	return nil
}
