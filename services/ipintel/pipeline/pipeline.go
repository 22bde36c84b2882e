// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline sequences the end-to-end risk analysis for one address.
//
// Control flow per request: cache lookup (fast path), three-source fan-out,
// normalization, semantic compression, risk assessment, cache write. Every
// stage converts its failures into data - degraded verdicts or error-marker
// mappings - so a request always produces a best-effort result and never a
// transport-level error.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSentry/services/ipintel/cache"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/datatypes"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/normalize"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/sources"
)

// Assessor produces a verdict from compressed indicator summaries. Satisfied
// by *assess.Assessor; a fake stands in for it in tests.
type Assessor interface {
	Assess(ctx context.Context, compressed []map[string]any) datatypes.Verdict
}

// Compressor reduces a serialized dataset to indicator summaries. Satisfied
// by *assess.Compressor.
type Compressor interface {
	Compress(ctx context.Context, dataJSON string) []map[string]any
}

// Config carries the cache policy for the pipeline.
type Config struct {
	// CacheVersion is the scheme-version token in every cache key. Bump it
	// when the verdict schema changes.
	CacheVersion string

	// CacheModelTag is the provider tag in the cache key, shared by reads
	// and writes so entries written by one request are found by the next.
	CacheModelTag string

	// CacheTTL is the expiry applied to stored entries.
	CacheTTL time.Duration

	// AllowedModels is the allow-list of model identifiers trusted on cache
	// read. Entries produced by anything else are treated as invalid.
	AllowedModels []string

	// RetiredProviders are provider names whose leaked error text must not
	// appear in a trusted entry's risk_analysis.
	RetiredProviders []string
}

// Pipeline is the per-request orchestrator. All collaborators are injected;
// none are constructed here.
type Pipeline struct {
	store      cache.Store
	aggregator *sources.Aggregator
	compressor Compressor
	assessor   Assessor

	cacheVersion  string
	cacheModelTag string
	cacheTTL      time.Duration
	allowedModels map[string]bool
	retired       []string
}

// New wires a pipeline from its collaborators.
func New(store cache.Store, agg *sources.Aggregator, compressor Compressor, assessor Assessor, cfg Config) *Pipeline {
	allowed := make(map[string]bool, len(cfg.AllowedModels))
	for _, m := range cfg.AllowedModels {
		allowed[m] = true
	}
	if cfg.CacheModelTag == "" {
		cfg.CacheModelTag = "openai"
	}
	return &Pipeline{
		store:         store,
		aggregator:    agg,
		compressor:    compressor,
		assessor:      assessor,
		cacheVersion:  cfg.CacheVersion,
		cacheModelTag: cfg.CacheModelTag,
		cacheTTL:      cfg.CacheTTL,
		allowedModels: allowed,
		retired:       cfg.RetiredProviders,
	}
}

// AnalyzeIP runs the full risk analysis for one address.
//
// # Description
//
// The decision table:
//
//   - valid cache entry: returned as-is, zero source/LLM calls
//   - invalid cache entry: deleted, full pipeline runs
//   - source fan-out itself fails: minimal record + forced degraded verdict,
//     assessor not invoked
//   - all three sources return error markers: minimal record, assessor still
//     invoked (the model may reason from the error text), result not cached
//   - at least one source ok: normalize, compress, assess
//   - assessor panic: caught, degraded verdict substituted
//   - merged result with a known risk level: persisted with TTL
//   - merged result with risk level unknown: never persisted
//
// AnalyzeIP never returns an error; failure is always expressed in the
// returned mapping.
func (p *Pipeline) AnalyzeIP(ctx context.Context, ip string) map[string]any {
	key := cache.Key(p.cacheVersion, p.cacheModelTag, ip)

	if cached, ok := p.store.Get(ctx, key); ok {
		if p.entryValid(cached) {
			slog.Info("Serving valid cached verdict", "ip", ip)
			return cached
		}
		slog.Warn("Invalid cache entry, deleting and re-running pipeline", "ip", ip)
		if err := p.store.Delete(ctx, key); err != nil {
			slog.Error("Failed to delete invalid cache entry", "key", key, "error", err)
		}
	}

	set, err := p.aggregator.Gather(ctx, ip)
	if err != nil {
		slog.Error("Source aggregation failed", "ip", ip, "error", err)
		minimal := normalize.MinimalRecord(ip, sources.SourceSet{
			Abuse: map[string]any{},
			IPQS:  map[string]any{},
			Geo:   map[string]any{},
		}, fmt.Sprintf("External API failure: %v", err))
		degraded := datatypes.DegradedVerdict("External APIs failed, no threat intelligence available.")
		return mergeMaps(minimal, degraded.ToMap())
	}

	if set.AllFailed() {
		slog.Warn("All external threat feeds failed", "ip", ip)
		minimal := normalize.MinimalRecord(ip, set, "Partial threat intelligence data due to external API errors.")
		verdict := p.safeAssess(ctx, minimal)
		return mergeMaps(minimal, verdict.ToMap())
	}

	normalized := normalize.MergeSources(ip, set)
	fullDataset := map[string]any{
		"normalized":  normalized,
		"raw_sources": set.RawSources(),
	}

	verdict := p.safeAssess(ctx, fullDataset)

	final := mergeMaps(normalized, verdict.ToMap())
	final["full_input_to_llm"] = fullDataset

	if verdict.RiskLevel != datatypes.RiskUnknown {
		if err := p.store.Set(ctx, key, final, p.cacheTTL); err != nil {
			slog.Error("Failed to cache verdict", "ip", ip, "error", err)
		} else {
			slog.Info("Cached verdict", "ip", ip, "risk_level", verdict.RiskLevel)
		}
	} else {
		slog.Info("Not caching degraded verdict", "ip", ip)
	}

	return final
}

// safeAssess serializes the dataset, compresses it, and runs the assessor.
// A panic anywhere below is caught and substituted with a degraded verdict;
// nothing propagates past the pipeline.
func (p *Pipeline) safeAssess(ctx context.Context, dataset map[string]any) (verdict datatypes.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Assessor panicked, substituting degraded verdict", "panic", r)
			verdict = datatypes.DegradedVerdict("AI model could not generate assessment.")
		}
	}()

	dataJSON, err := json.Marshal(dataset)
	if err != nil {
		slog.Error("Failed to serialize dataset for assessment", "error", err)
		return datatypes.DegradedVerdict("AI model could not generate assessment.")
	}

	compressed := p.compressor.Compress(ctx, string(dataJSON))
	return p.assessor.Assess(ctx, compressed)
}

// entryValid is the cache validity predicate.
//
// # Description
//
// An entry is trusted only when it is a well-formed verdict mapping: all
// five verdict fields plus model_used present, a recognized risk level, a
// model from the current allow-list (not null/"null"/"none"), a
// risk_analysis free of retired-provider error text, a numeric confidence
// in [0,1], and a list-shaped recommendations. Anything else is treated as
// a miss and the caller deletes the key (self-healing cache).
func (p *Pipeline) entryValid(entry map[string]any) bool {
	for _, key := range []string{"risk_level", "risk_analysis", "recommendations", "confidence", "model_used"} {
		if _, ok := entry[key]; !ok {
			return false
		}
	}

	rl, _ := entry["risk_level"].(string)
	if rl != datatypes.RiskLow && rl != datatypes.RiskMedium && rl != datatypes.RiskHigh {
		return false
	}

	model := strings.ToLower(fmt.Sprint(entry["model_used"]))
	if model == "" || model == "null" || model == "none" || model == "<nil>" {
		return false
	}
	if !p.allowedModels[fmt.Sprint(entry["model_used"])] {
		return false
	}

	analysis, ok := entry["risk_analysis"].(string)
	if !ok {
		return false
	}
	for _, provider := range p.retired {
		if strings.Contains(strings.ToLower(analysis), strings.ToLower(provider)) {
			return false
		}
	}

	conf, ok := asFloat(entry["confidence"])
	if !ok || conf < 0 || conf > 1 {
		return false
	}

	if _, ok := entry["recommendations"].([]any); !ok {
		return false
	}

	return true
}

// asFloat accepts the numeric shapes a cache entry can carry depending on
// whether it came from a JSON decode or was built in process.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// mergeMaps overlays b onto a copy of a; later keys win, inputs untouched.
func mergeMaps(a, b map[string]any) map[string]any {
	merged := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
