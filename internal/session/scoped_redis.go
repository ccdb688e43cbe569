// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelarcompany/gateway/internal/platform/constants"
)

// RedisScoped keeps scoped storage in a Redis hash keyed by a browser ID cookie.
//
// Several gateway replicas share one view of the browser's storage.
type RedisScoped struct {
	client  redis.UniversalClient
	ttl     time.Duration
	browser browserCookie
}

// NewRedisScoped creates a Redis-backed [Scoped].
func NewRedisScoped(client redis.UniversalClient, ttl time.Duration, secure bool) *RedisScoped {
	return &RedisScoped{
		client:  client,
		ttl:     ttl,
		browser: browserCookie{maxAge: int(ttl.Seconds()), secure: secure},
	}
}

func scopedKey(browserID string) string {
	return fmt.Sprintf("%s%s", constants.RedisPrefixScoped, browserID)
}

// Read loads the hash of the browser.
func (scoped *RedisScoped) Read(request *http.Request) (Values, error) {
	id := scoped.browser.id(request)
	if id == "" {
		return Values{}, nil
	}

	stored, err := scoped.client.HGetAll(request.Context(), scopedKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_scoped_read_failed: %w", err)
	}

	return Values(stored), nil
}

// Write replaces the hash atomically and refreshes its TTL.
func (scoped *RedisScoped) Write(writer http.ResponseWriter, request *http.Request, values Values) error {
	key := scopedKey(scoped.browser.ensure(writer, request))

	fields := make(map[string]any, len(values))
	for name, value := range values {
		fields[name] = value
	}

	_, err := scoped.client.TxPipelined(request.Context(), func(pipe redis.Pipeliner) error {
		pipe.Del(request.Context(), key)
		if len(fields) > 0 {
			pipe.HSet(request.Context(), key, fields)
			pipe.Expire(request.Context(), key, scoped.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis_scoped_write_failed: %w", err)
	}

	return nil
}

// Clear deletes the hash. The browser ID cookie is kept.
func (scoped *RedisScoped) Clear(_ http.ResponseWriter, request *http.Request) error {
	id := scoped.browser.id(request)
	if id == "" {
		return nil
	}

	if err := scoped.client.Del(request.Context(), scopedKey(id)).Err(); err != nil {
		return fmt.Errorf("redis_scoped_clear_failed: %w", err)
	}
	return nil
}
