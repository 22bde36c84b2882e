// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ipintel provides the IP threat intelligence service.
//
// This package is the composition root: it owns construction of the cache
// store, the three source clients, the compressor/assessor pair, and the
// HTTP router, and wires them into the request pipeline. The LLM client is
// injected by the caller so tests and alternative providers can substitute
// a fake without touching global state.
//
// # Usage
//
//	client, err := llm.NewOpenAIClient()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := ipintel.New(ipintel.Config{Port: 8300}, client)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package ipintel

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianSentry/services/ipintel/assess"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/cache"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/pipeline"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/routes"
	"github.com/AleutianAI/AleutianSentry/services/ipintel/sources"
	"github.com/AleutianAI/AleutianSentry/services/llm"
	"github.com/gin-gonic/gin"
)

// Cache backend selectors for Config.CacheBackend.
const (
	CacheBackendRedis  = "redis"
	CacheBackendBadger = "badger"
)

// defaultModelOrder is the fallback ladder, fastest and cheapest first.
var defaultModelOrder = []string{"gpt-4.1-mini", "gpt-4.1"}

// Config holds the service configuration assembled from the environment by
// the entrypoint.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// ModelOrder is the LLM fallback ladder, fast to accurate. The first
	// entry is also used for chunk compression and the startup probe.
	ModelOrder []string

	// MaxAttempts bounds retries per model (default 3).
	MaxAttempts int

	// CacheBackend selects redis or badger (default badger, in-memory when
	// BadgerPath is empty).
	CacheBackend string

	// RedisURL is the Redis connection URL for the redis backend.
	RedisURL string

	// BadgerPath is the on-disk location for the badger backend.
	BadgerPath string

	// CacheVersion is the verdict schema version token (default v1).
	CacheVersion string

	// CacheTTL is the verdict expiry (default 24h).
	CacheTTL time.Duration

	// AbuseIPDBKey and IPQSKey authenticate the source lookups.
	AbuseIPDBKey string
	IPQSKey      string
}

// Service defines the contract for the IP intelligence service.
//
// Run blocks until the server stops; call it at most once. Router exposes
// the configured engine for integration tests.
type Service interface {
	Run() error
	Router() *gin.Engine
}

type service struct {
	cfg    Config
	router *gin.Engine
	store  cache.Store
}

// New builds the service from its configuration and an injected LLM client.
func New(cfg Config, client llm.Client) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if len(cfg.ModelOrder) == 0 {
		cfg.ModelOrder = defaultModelOrder
	}
	if cfg.CacheVersion == "" {
		cfg.CacheVersion = "v1"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := sources.DefaultHTTPClient()
	aggregator := sources.NewAggregator(
		sources.NewAbuseIPDB(cfg.AbuseIPDBKey, httpClient),
		sources.NewIPQualityScore(cfg.IPQSKey, httpClient),
		sources.NewIPAPI(httpClient),
	)

	pipe := pipeline.New(
		store,
		aggregator,
		assess.NewCompressor(client, cfg.ModelOrder[0]),
		assess.NewAssessor(client, cfg.ModelOrder, cfg.MaxAttempts),
		pipeline.Config{
			CacheVersion:     cfg.CacheVersion,
			CacheModelTag:    "openai",
			CacheTTL:         cfg.CacheTTL,
			AllowedModels:    cfg.ModelOrder,
			RetiredProviders: []string{"gemini"},
		},
	)

	router := gin.Default()
	routes.SetupRoutes(router, pipe)

	return &service{cfg: cfg, router: router, store: store}, nil
}

// newStore opens the configured cache backend.
func newStore(cfg Config) (cache.Store, error) {
	switch cfg.CacheBackend {
	case CacheBackendRedis:
		return cache.NewRedisStore(context.Background(), cfg.RedisURL)
	case CacheBackendBadger, "":
		return cache.NewBadgerStore(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.store.Close()
	return s.router.Run(fmt.Sprintf(":%d", s.cfg.Port))
}

// Router returns the configured engine for integration testing.
func (s *service) Router() *gin.Engine {
	return s.router
}
