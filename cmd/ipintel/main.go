// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ipintel starts the IP threat intelligence HTTP server.
//
// It reads configuration from environment variables, probes the LLM provider
// once, and refuses to start when the provider is unreachable.
//
// # Environment Variables
//
//   - IPINTEL_PORT: HTTP server port (default: 8300)
//   - OPENAI_API_KEY: LLM provider key (required, or Podman secret)
//   - OPENAI_MODEL_ORDER: comma-separated fallback ladder (default: gpt-4.1-mini,gpt-4.1)
//   - ABUSEIPDB_API_KEY: AbuseIPDB key (required)
//   - IPQUALITYSCORE_API_KEY: IPQualityScore key (required)
//   - CACHE_BACKEND: redis or badger (default: badger)
//   - REDIS_URL: Redis connection URL (redis backend)
//   - BADGER_PATH: BadgerDB directory (badger backend; empty = in-memory)
//   - CACHE_TTL_SECONDS: verdict cache TTL (default: 86400)
//   - CACHE_VERSION: verdict schema version token (default: v1)
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSentry/services/ipintel"
	"github.com/AleutianAI/AleutianSentry/services/llm"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if missing := missingRequiredEnv(); len(missing) > 0 {
		slog.Error("Missing required environment variables", "missing", missing)
		os.Exit(1)
	}

	cfg := ipintel.Config{
		Port:         getEnvInt("IPINTEL_PORT", 8300),
		ModelOrder:   splitList(getEnvString("OPENAI_MODEL_ORDER", "gpt-4.1-mini,gpt-4.1")),
		CacheBackend: getEnvString("CACHE_BACKEND", ipintel.CacheBackendBadger),
		RedisURL:     os.Getenv("REDIS_URL"),
		BadgerPath:   os.Getenv("BADGER_PATH"),
		CacheVersion: getEnvString("CACHE_VERSION", "v1"),
		CacheTTL:     time.Duration(getEnvInt("CACHE_TTL_SECONDS", 86400)) * time.Second,
		AbuseIPDBKey: os.Getenv("ABUSEIPDB_API_KEY"),
		IPQSKey:      os.Getenv("IPQUALITYSCORE_API_KEY"),
	}

	slog.Info("Starting Aleutian IP intelligence service",
		"port", cfg.Port,
		"model_order", cfg.ModelOrder,
		"cache_backend", cfg.CacheBackend,
		"cache_version", cfg.CacheVersion,
	)

	client, err := llm.NewOpenAIClient()
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}

	// Fail fast: the pipeline is useless without a reachable provider.
	probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Probe(probeCtx, cfg.ModelOrder[0]); err != nil {
		log.Fatalf("LLM provider unreachable, refusing to start: %v", err)
	}
	slog.Info("LLM connectivity OK", "model", cfg.ModelOrder[0])

	svc, err := ipintel.New(cfg, client)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// missingRequiredEnv reports all absent required variables at once so a
// misconfigured deployment fails with one actionable message.
func missingRequiredEnv() []string {
	var missing []string
	for _, key := range []string{"ABUSEIPDB_API_KEY", "IPQUALITYSCORE_API_KEY"} {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
