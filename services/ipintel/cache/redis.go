// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the verdict cache with Redis. Values are stored as JSON
// strings with a native Redis TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the given Redis URL (e.g. redis://localhost:6379)
// and pings it once so misconfiguration fails at startup, not mid-request.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Get implements Store. Transport errors and undecodable payloads are both
// treated as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (map[string]any, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Redis get failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		slog.Warn("Undecodable cache entry, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache entry encode failed: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("Redis set failed: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("Redis delete failed: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
