// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
)

// RedisPendingRepository implements [PendingRepository] using Redis.
type RedisPendingRepository struct {
	client redis.UniversalClient
}

// NewRedisPendingRepository creates a Redis-backed [PendingRepository].
func NewRedisPendingRepository(client redis.UniversalClient) *RedisPendingRepository {
	return &RedisPendingRepository{client: client}
}

func pendingKey(document string) string {
	return fmt.Sprintf("%s%s", constants.RedisPrefixPending, document)
}

/*
Put stores the gate state as JSON with a TTL.

Parameters:
  - context: context.Context
  - pending: *Pending
  - ttl: time.Duration

Returns:
  - error: Encoding or storage failures
*/
func (repository *RedisPendingRepository) Put(context context.Context, pending *Pending, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("redis_pending_encode_failed: %w", err)
	}

	if err := repository.client.Set(context, pendingKey(pending.Document), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_pending_set_failed: %w", err)
	}

	return nil
}

/*
Get retrieves the gate state of a document.

Returns:
  - *Pending: Decoded state
  - error: apperr.NotFound if absent or expired
*/
func (repository *RedisPendingRepository) Get(context context.Context, document string) (*Pending, error) {
	payload, err := repository.client.Get(context, pendingKey(document)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Pending verification")
		}
		return nil, fmt.Errorf("redis_pending_get_failed: %w", err)
	}

	var pending Pending
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, fmt.Errorf("redis_pending_decode_failed: %w", err)
	}

	return &pending, nil
}

// Delete removes the gate state of a document.
func (repository *RedisPendingRepository) Delete(context context.Context, document string) error {
	if err := repository.client.Del(context, pendingKey(document)).Err(); err != nil {
		return fmt.Errorf("redis_pending_delete_failed: %w", err)
	}
	return nil
}
