// Package redis provides a Redis-backed storage adapter for deployments
// where the cart should follow the shopper across devices.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/martincharlesFajIT/fajtradingllc/internal/storage"
)

const keyPrefix = "cart:"

// Adapter implements storage.Adapter on a Redis client. A zero TTL keeps
// keys forever, matching the file adapter's behavior.
type Adapter struct {
	client *goredis.Client
	ttl    time.Duration
}

var _ storage.Adapter = (*Adapter)(nil)

// New creates a Redis adapter with the given key TTL.
func New(client *goredis.Client, ttl time.Duration) *Adapter {
	return &Adapter{client: client, ttl: ttl}
}

// Read returns the stored value, mapping redis.Nil to storage.ErrNotFound.
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := a.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Write stores the value with the configured TTL.
func (a *Adapter) Write(ctx context.Context, key string, value []byte) error {
	if err := a.client.Set(ctx, keyPrefix+key, value, a.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping probes the Redis connection.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
