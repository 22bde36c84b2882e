// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the versioned verdict cache.
//
// The cache is best effort, not a source of truth: entries are idempotently
// re-derivable by re-running the pipeline, so there is no locking and
// concurrent writers for the same key simply race (last write wins). Trust
// decisions happen in the pipeline, which applies a validity predicate to
// every entry it reads and deletes anything that fails it.
//
// Two backends implement the same Store interface: Redis for shared
// deployments and BadgerDB for single-node or test setups.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Store is the key/value contract shared by all cache backends.
//
// # Description
//
// Get returns the stored decoded mapping, or ok=false when the key is
// absent, expired, or undecodable - decode failures never surface to the
// caller. Set stores with a TTL and overwrite semantics. Delete is
// idempotent; removing an absent key is not an error.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (map[string]any, bool)
	Set(ctx context.Context, key string, value map[string]any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key builds the versioned cache key for one (model, address) pair.
//
// Format: ipintel:<version>:<model-tag>:<address>. The version token is bumped
// whenever the verdict schema changes and the model tag names the producing
// model, so schema or provider migrations invalidate old entries without a
// manual purge.
func Key(version, modelTag, address string) string {
	return fmt.Sprintf("ipintel:%s:%s:%s", version, modelTag, address)
}
