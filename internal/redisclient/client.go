package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockSource string

var releaseLockScript = redis.NewScript(releaseLockSource)

// Client wraps Redis for cross-instance coordination: the monitoring sweep
// lock and webhook delivery de-duplication. Booking state never lives here.
type Client struct {
	rdb      *redis.Client
	holderID string
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientWithRedis(rdb, uuid.New().String()), nil
}

// NewClientWithRedis wraps an existing connection. holderID identifies this
// process as a lock holder.
func NewClientWithRedis(rdb *redis.Client, holderID string) *Client {
	return &Client{rdb: rdb, holderID: holderID}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Ping is used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Claim records key as seen for ttl. It returns false when the key was
// already claimed, which callers treat as a duplicate delivery.
func (c *Client) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("dedup:%s", key), c.holderID, ttl).Result()
}

// Unclaim forgets a claim so a redelivery is processed again.
func (c *Client) Unclaim(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("dedup:%s", key)).Err()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), c.holderID, ttl).Result()
}

// ReleaseLock releases the lock only if this process still holds it.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	_, err := releaseLockScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, c.holderID).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
