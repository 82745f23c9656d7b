// Package cache provides a Redis-backed snapshot cache for the funds
// service. A cache miss or Redis failure falls through to a fresh compute,
// so the cooperative never serves wrong numbers because Redis is down.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bayanihan-circle/coop_ledger/internal/app/services/funds"
	"github.com/bayanihan-circle/coop_ledger/pkg/logger"
)

// SnapshotCache stores funds snapshots as JSON values with a TTL.
type SnapshotCache struct {
	client *redis.Client
	log    *logger.Logger
}

var _ funds.Cache = (*SnapshotCache)(nil)

// NewSnapshotCache connects to Redis at addr and verifies the connection.
func NewSnapshotCache(ctx context.Context, addr, password string, db int, log *logger.Logger) (*SnapshotCache, error) {
	if log == nil {
		log = logger.NewDefault("cache")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &SnapshotCache{client: client, log: log}, nil
}

func (c *SnapshotCache) Get(ctx context.Context, key string) (funds.Snapshot, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("redis get failed")
		}
		return funds.Snapshot{}, false
	}
	var snap funds.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.log.WithError(err).Warn("discarding undecodable cached snapshot")
		return funds.Snapshot{}, false
	}
	return snap, true
}

func (c *SnapshotCache) Set(ctx context.Context, key string, snap funds.Snapshot, ttl time.Duration) {
	raw, err := json.Marshal(snap)
	if err != nil {
		c.log.WithError(err).Warn("marshal snapshot")
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.WithError(err).Warn("redis set failed")
	}
}

// Close releases the underlying Redis connection.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
