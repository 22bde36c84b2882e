// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sources

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Source is one external threat-intelligence provider.
//
// Fetch returns either the provider's data payload or an error marker; it
// never returns a Go error and must not panic under normal operation.
type Source interface {
	Name() string
	Fetch(ctx context.Context, ip string) map[string]any
}

// SourceSet holds the raw payloads from all three providers for one address.
type SourceSet struct {
	Abuse map[string]any
	IPQS  map[string]any
	Geo   map[string]any
}

// AllFailed reports whether every provider returned an error marker.
func (s SourceSet) AllFailed() bool {
	return IsErrorMarker(s.Abuse) && IsErrorMarker(s.IPQS) && IsErrorMarker(s.Geo)
}

// RawSources returns the payloads keyed by provider name, the shape embedded
// in every normalized record and cache entry.
func (s SourceSet) RawSources() map[string]any {
	return map[string]any{
		"abuseipdb":      s.Abuse,
		"ipqualityscore": s.IPQS,
		"ipapi":          s.Geo,
	}
}

// Aggregator fans out to the three providers concurrently and waits for all
// of them.
type Aggregator struct {
	abuse Source
	ipqs  Source
	geo   Source
}

// NewAggregator wires the three providers into one fan-out unit.
func NewAggregator(abuse, ipqs, geo Source) *Aggregator {
	return &Aggregator{abuse: abuse, ipqs: ipqs, geo: geo}
}

// Gather looks up the address against all three providers at once and blocks
// until every lookup finished.
//
// # Description
//
// Individual provider failures are already data (error markers inside the
// SourceSet), so sibling lookups are never cancelled by one provider going
// down. Gather itself only returns an error when the fan-out machinery
// fails, i.e. a provider implementation panics; the pipeline maps that onto
// its forced-degraded path.
func (a *Aggregator) Gather(ctx context.Context, ip string) (SourceSet, error) {
	var set SourceSet
	g, ctx := errgroup.WithContext(ctx)

	g.Go(safeFetch(ctx, a.abuse, ip, &set.Abuse))
	g.Go(safeFetch(ctx, a.ipqs, ip, &set.IPQS))
	g.Go(safeFetch(ctx, a.geo, ip, &set.Geo))

	if err := g.Wait(); err != nil {
		return SourceSet{}, err
	}
	return set, nil
}

// safeFetch runs one provider lookup and converts a panic into an error so
// the group can report it instead of crashing the request.
func safeFetch(ctx context.Context, src Source, ip string, out *map[string]any) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
			}
		}()
		*out = src.Fetch(ctx, ip)
		return nil
	}
}
