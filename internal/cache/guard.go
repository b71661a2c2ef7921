package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const syncGuardTTL = 24 * time.Hour

// SyncGuard remembers which (customer, order) pairings already had their
// identity synchronized, so the sync runs at most once per pairing.
type SyncGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSyncGuard(client *redis.Client) *SyncGuard {
	return &SyncGuard{client: client, ttl: syncGuardTTL}
}

// Acquire reports true only for the first caller of a pairing.
func (g *SyncGuard) Acquire(ctx context.Context, customerIRI, token string) (bool, error) {
	ok, err := g.client.SetNX(ctx, syncKey(customerIRI, token), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func syncKey(customerIRI, token string) string {
	sum := sha256.Sum256([]byte(customerIRI))
	return fmt.Sprintf("identity-sync:%s:%s", token, hex.EncodeToString(sum[:8]))
}
