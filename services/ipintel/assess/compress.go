// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assess

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianSentry/services/llm"
)

const (
	// defaultChunkSize is the slice length fed to one compression call.
	defaultChunkSize = 2000

	// syntheticSummaryLimit caps the raw-dataset prefix used when every
	// compression call failed.
	syntheticSummaryLimit = 4000

	// compressTemperature keeps chunk extraction near deterministic.
	compressTemperature = 0.1
)

const compressPromptTemplate = `
Extract cyber-security relevant indicators from this text.

RULES:
- Always return valid JSON
- Never return empty output
- If text is poorly formatted, extract what is possible

CHUNK:
%s

Return ONLY JSON:
{
  "signals": ["list important indicators"],
  "summary": "short compressed analysis"
}
`

// Compressor reduces an arbitrarily large serialized dataset to a bounded set
// of short indicator summaries that fit one model call's context budget.
//
// # Description
//
// The dataset text is split into contiguous fixed-size slices (no overlap,
// last slice may be shorter) and each slice goes to the model concurrently.
// A slice whose call fails or whose response is unparseable yields nothing
// and is dropped without retry. When every slice fails, one synthetic chunk
// carrying an empty signal list and a truncated dataset prefix is substituted
// so the pipeline never stalls on total compression failure.
//
// # Thread Safety
//
// Safe for concurrent use; all state is per-call.
type Compressor struct {
	llm       llm.Client
	model     string
	chunkSize int
}

// NewCompressor builds a compressor that extracts indicators with the given
// model (normally the fastest model of the fallback order).
func NewCompressor(client llm.Client, model string) *Compressor {
	return &Compressor{llm: client, model: model, chunkSize: defaultChunkSize}
}

// Compress fans out one extraction call per slice and blocks until all of
// them finished. Results are order-independent; chunk summaries are
// recombined as an unordered collection.
func (c *Compressor) Compress(ctx context.Context, dataJSON string) []map[string]any {
	slices := chunkText(dataJSON, c.chunkSize)
	slog.Info("Compressing dataset", "chunks", len(slices), "model", c.model)

	results := make([]map[string]any, len(slices))
	var wg sync.WaitGroup
	for i, slice := range slices {
		wg.Add(1)
		go func(i int, slice string) {
			defer wg.Done()
			results[i] = c.compressChunk(ctx, slice)
		}(i, slice)
	}
	wg.Wait()

	compressed := make([]map[string]any, 0, len(results))
	for _, r := range results {
		if r != nil {
			compressed = append(compressed, r)
		}
	}

	if len(compressed) == 0 {
		slog.Warn("No compressed chunks produced, using raw truncated dataset")
		compressed = []map[string]any{{
			"signals": []any{},
			"summary": truncate(dataJSON, syntheticSummaryLimit),
		}}
	}
	return compressed
}

// compressChunk runs one extraction call. Any failure (transport, timeout,
// unparseable response) yields nil; the slice is dropped, not retried.
func (c *Compressor) compressChunk(ctx context.Context, slice string) map[string]any {
	prompt := fmt.Sprintf(compressPromptTemplate, slice)
	raw, err := c.llm.Complete(ctx, c.model, prompt, llm.GenerationParams{
		Temperature: llm.Temperature(compressTemperature),
	})
	if err != nil {
		slog.Error("Chunk compression failed", "model", c.model, "error", err)
		return nil
	}
	parsed, ok := ExtractJSON(raw)
	if !ok {
		slog.Warn("Chunk compression returned unparseable output", "model", c.model)
		return nil
	}
	return parsed
}

// chunkText splits s into contiguous size-byte slices with no overlap.
func chunkText(s string, size int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	var chunks []string
	for start := 0; start < len(s); start += size {
		end := start + size
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[start:end])
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
