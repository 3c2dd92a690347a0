package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/model"
)

// Client is the part of *redis.Client the snapshot cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SnapshotCache stores plan limit snapshots as JSON with a TTL.
type SnapshotCache struct {
	rdb    Client
	ttl    time.Duration
	prefix string
}

func NewSnapshotCache(rdb Client, ttl time.Duration, prefix string) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "entitlements:snapshot"
	}
	return &SnapshotCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *SnapshotCache) key(userID string) string {
	return c.prefix + ":" + userID
}

// Get returns the cached snapshot. A miss is (zero, false, nil).
func (c *SnapshotCache) Get(ctx context.Context, userID string) (model.PlanLimits, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.PlanLimits{}, false, nil
		}
		return model.PlanLimits{}, false, fmt.Errorf("redis get: %w", err)
	}
	var limits model.PlanLimits
	if err := json.Unmarshal(raw, &limits); err != nil {
		return model.PlanLimits{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return limits, true, nil
}

func (c *SnapshotCache) Set(ctx context.Context, userID string, limits model.PlanLimits) error {
	raw, err := json.Marshal(limits)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(userID), raw, c.ttl).Err()
}

func (c *SnapshotCache) Delete(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}

// ReadyCheck pings Redis for /readyz.
func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
