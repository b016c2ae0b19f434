package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/playr/internal/shared"
	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until the tokens would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenylist is a process-local [Denylist].
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist creates an empty [MemoryDenylist]. now defaults to [time.Now].
func NewMemoryDenylist(now func() time.Time) *MemoryDenylist {
	if now == nil {
		now = time.Now
	}
	return &MemoryDenylist{entries: make(map[string]time.Time), now: now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("%w: token id is required", shared.ErrInvalidArgument)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.entries {
		if !now.Before(exp) {
			delete(d.entries, id)
		}
	}
	if now.Before(until) {
		d.entries[tokenID] = until
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.entries[tokenID]
	return ok && d.now().Before(exp), nil
}

const redisKeyPrefix = "playr:revoked:"

// RedisDenylist stores revoked token ids in Redis with a TTL matching the token's remaining lifetime.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist connects to the Redis instance at url and pings it.
func NewRedisDenylist(ctx context.Context, url string) (*RedisDenylist, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", shared.ErrServiceUnavailable, err)
	}
	return &RedisDenylist{client: client}, nil
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("%w: token id is required", shared.ErrInvalidArgument)
	}

	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, redisKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, redisKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// Close releases the Redis connection pool.
func (d *RedisDenylist) Close() error {
	return d.client.Close()
}
