package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/domain"
)

const cacheKeyPrefix = "catalog:charge:"

// Cached is a read-through Redis cache in front of another Resolver.
// Redis failures degrade to direct lookups; misses are never cached.
type Cached struct {
	next  Resolver
	redis *redis.Client
	ttl   time.Duration
	log   *logrus.Logger
}

func NewCached(next Resolver, client *redis.Client, ttl time.Duration, log *logrus.Logger) *Cached {
	return &Cached{next: next, redis: client, ttl: ttl, log: log}
}

func (c *Cached) Resolve(ctx context.Context, ref string) (*domain.Charge, error) {
	key := cacheKey(ref)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var charge domain.Charge
		if jsonErr := json.Unmarshal(raw, &charge); jsonErr == nil {
			return &charge, nil
		}
		c.log.WithField("key", key).Warn("discarding unreadable catalog cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("catalog cache unavailable")
	}

	charge, err := c.next.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(charge)
	if err != nil {
		return charge, nil
	}
	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("failed to cache catalog entry")
	}

	return charge, nil
}

// Invalidate drops a cached entry after the catalog changes upstream
func (c *Cached) Invalidate(ctx context.Context, ref string) error {
	if err := c.redis.Del(ctx, cacheKey(ref)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", ref, err)
	}
	return nil
}

func cacheKey(ref string) string {
	return cacheKeyPrefix + ref
}
