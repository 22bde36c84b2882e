// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the chat-completion client used by the risk pipeline.
//
// The pipeline calls the same provider with different models (a fast model
// for chunk compression, a fallback ladder for the final verdict), so the
// model is a per-call argument rather than client state.
package llm

import "context"

// GenerationParams holds optional sampling parameters for a completion.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for any LLM backend.
//
// Implementations must be safe for concurrent use: chunk compression fans
// out many Complete calls at once. A failed call returns ("", err); callers
// treat every error the same way (skip the attempt), so implementations
// should not panic on transport failures.
type Client interface {
	// Complete sends one chat-completion request and returns the raw
	// assistant text. The model identifier is passed per call.
	Complete(ctx context.Context, model, prompt string, params GenerationParams) (string, error)

	// Probe verifies the provider is reachable with a minimal request.
	// Used once at startup; the server refuses to start on error.
	Probe(ctx context.Context, model string) error
}

// Temperature is a convenience for building GenerationParams literals.
func Temperature(t float32) *float32 { return &t }

// MaxTokens is a convenience for building GenerationParams literals.
func MaxTokens(n int) *int { return &n }
