// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package handoff

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelarcompany/gateway/internal/platform/constants"
)

// ReplayGuard remembers consumed ticket ids.
type ReplayGuard interface {
	// Claim marks id as consumed for ttl. It reports false when id was already claimed.
	Claim(context context.Context, id string, ttl time.Duration) (bool, error)
}

// # Redis

// RedisReplayGuard shares consumed ids between gateway replicas.
type RedisReplayGuard struct {
	client redis.UniversalClient
}

// NewRedisReplayGuard creates a [RedisReplayGuard].
func NewRedisReplayGuard(client redis.UniversalClient) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

// Claim implements [ReplayGuard] with SET NX.
func (guard *RedisReplayGuard) Claim(context context.Context, id string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("%s%s", constants.RedisPrefixTicket, id)

	fresh, err := guard.client.SetNX(context, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis_ticket_claim_failed: %w", err)
	}
	return fresh, nil
}

// # Memory

// MemoryReplayGuard keeps consumed ids in process memory. Single replica only.
type MemoryReplayGuard struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	now     func() time.Time
}

// NewMemoryReplayGuard creates an empty [MemoryReplayGuard].
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{claimed: make(map[string]time.Time), now: time.Now}
}

// Claim implements [ReplayGuard]. Expired ids are swept on every call.
func (guard *MemoryReplayGuard) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	guard.mu.Lock()
	defer guard.mu.Unlock()

	now := guard.now()
	for claimedID, expiresAt := range guard.claimed {
		if now.After(expiresAt) {
			delete(guard.claimed, claimedID)
		}
	}

	if _, exists := guard.claimed[id]; exists {
		return false, nil
	}

	guard.claimed[id] = now.Add(ttl)
	return true, nil
}
