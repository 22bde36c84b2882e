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

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore backs the verdict cache with an embedded BadgerDB instance.
// Used for single-node deployments without Redis, and in-memory for tests.
// TTL expiry uses Badger's native per-entry expiry (second granularity).
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a BadgerDB at path. An empty path opens
// an in-memory database with no disk persistence.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is too chatty for a cache
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Get implements Store. Absent, expired, and undecodable entries are all a miss.
func (s *BadgerStore) Get(_ context.Context, key string) (map[string]any, bool) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("Badger get failed, treating as miss", "key", key, "error", err)
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
func (s *BadgerStore) Set(_ context.Context, key string, value map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache entry encode failed: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("Badger set failed: %w", err)
	}
	return nil
}

// Delete implements Store. Deleting an absent key succeeds.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("Badger delete failed: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
