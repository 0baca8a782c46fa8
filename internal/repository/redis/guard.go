package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardTTL = 48 * time.Hour

// ScanGuard is the fast-path idempotency guard for scan-based trigger fires.
// SET NX keeps concurrent scanner instances from racing the same key before
// the durable claim lands. The TTL outlives any scan period that reuses the
// key within the same calendar day.
type ScanGuard struct {
	client *redis.Client
	prefix string
}

// NewScanGuard creates a new scan guard
func NewScanGuard(client *redis.Client) *ScanGuard {
	return &ScanGuard{client: client, prefix: "automations:"}
}

// TryAcquire attempts to take the key. Returns true when this caller set it
// first, false when another scanner already holds it.
func (g *ScanGuard) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, guardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire scan guard: %w", err)
	}
	return ok, nil
}

// Release drops the key so a later scan can retry a fire that queued nothing
func (g *ScanGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release scan guard: %w", err)
	}
	return nil
}
