// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assess turns compressed threat indicators into a structured risk
// verdict.
//
// The assessor walks a (model, attempt) ladder: models in configured
// fast-to-accurate order, a bounded number of attempts per model, attempts
// strictly sequential. The first schema-valid verdict from any model wins
// and short-circuits everything after it; cheaper models are preferred
// whenever they produce a valid result. When the ladder is exhausted the
// assessor degrades to an unknown-risk verdict instead of returning an
// error - nothing raised here may escape past this package.
package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianSentry/services/ipintel/datatypes"
	"github.com/AleutianAI/AleutianSentry/services/llm"
)

// defaultMaxAttempts bounds the retries per model.
const defaultMaxAttempts = 3

const finalPromptTemplate = `
You are a senior cybersecurity threat intelligence analyst.

Below are all compressed indicators from multiple threat intelligence sources:

%s

Using ALL indicators, produce STRICT JSON ONLY:

{
  "risk_level": "Low" | "Medium" | "High",
  "risk_analysis": "text",
  "recommendations": ["list actions"],
  "confidence": number_between_0_and_1
}
`

const repairPromptTemplate = `
Repair the following into valid JSON ONLY.

TEXT:
%s

Return ONLY valid JSON:
`

// Assessor drives the final structured-verdict generation.
type Assessor struct {
	llm         llm.Client
	modelOrder  []string
	maxAttempts int
}

// NewAssessor builds an assessor over the given model fallback order.
// maxAttempts <= 0 selects the default of 3.
func NewAssessor(client llm.Client, modelOrder []string, maxAttempts int) *Assessor {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Assessor{llm: client, modelOrder: modelOrder, maxAttempts: maxAttempts}
}

// modelAttempt is one rung of the retry ladder.
type modelAttempt struct {
	model   string
	attempt int
}

// attemptLadder flattens the (model order x attempt count) nesting into the
// exact sequence the assessor walks. Ordering is models outermost, attempts
// innermost, both strictly sequential.
func attemptLadder(models []string, attempts int) []modelAttempt {
	ladder := make([]modelAttempt, 0, len(models)*attempts)
	for _, m := range models {
		for a := 1; a <= attempts; a++ {
			ladder = append(ladder, modelAttempt{model: m, attempt: a})
		}
	}
	return ladder
}

// Assess produces a single verdict from the compressed indicator summaries.
//
// # Description
//
// One "final assessment" prompt is built from all summaries, then tried
// against the ladder. Per attempt: transport errors skip to the next rung;
// unparseable output gets exactly one repair call; a parsed object has its
// risk level normalized and the producing model stamped before schema
// validation, and a schema violation counts the same as an extraction
// failure. The first valid verdict is returned immediately. Exhaustion
// returns a degraded verdict, never an error.
func (a *Assessor) Assess(ctx context.Context, compressed []map[string]any) datatypes.Verdict {
	compressedJSON, err := json.Marshal(compressed)
	if err != nil {
		slog.Error("Failed to serialize compressed indicators", "error", err)
		return datatypes.DegradedVerdict("AI model could not generate a valid assessment.")
	}
	prompt := fmt.Sprintf(finalPromptTemplate, string(compressedJSON))

	for _, rung := range attemptLadder(a.modelOrder, a.maxAttempts) {
		slog.Info("Final assessment attempt", "model", rung.model, "attempt", rung.attempt)

		raw, err := a.llm.Complete(ctx, rung.model, prompt, llm.GenerationParams{
			Temperature: llm.Temperature(0.1),
		})
		if err != nil {
			slog.Warn("Assessment call failed", "model", rung.model, "attempt", rung.attempt, "error", err)
			continue
		}

		parsed, ok := ExtractJSON(raw)
		if !ok {
			parsed, ok = a.repairJSON(ctx, rung.model, raw)
		}
		if !ok {
			slog.Warn("JSON extraction failed", "model", rung.model, "attempt", rung.attempt)
			continue
		}

		normalizeRiskLevel(parsed)
		parsed["model_used"] = rung.model

		verdict, err := datatypes.VerdictFromMap(parsed)
		if err != nil {
			slog.Warn("Model output failed schema validation", "model", rung.model, "attempt", rung.attempt, "error", err)
			continue
		}
		return verdict
	}

	slog.Error("All models and attempts exhausted, returning degraded verdict")
	return datatypes.DegradedVerdict("AI model could not generate a valid assessment.")
}

// repairJSON asks the model once to rewrite broken output into valid JSON,
// then re-runs extraction. Never chained: a failed repair fails the attempt.
func (a *Assessor) repairJSON(ctx context.Context, model, broken string) (map[string]any, bool) {
	raw, err := a.llm.Complete(ctx, model, fmt.Sprintf(repairPromptTemplate, broken), llm.GenerationParams{
		Temperature: llm.Temperature(0),
	})
	if err != nil {
		slog.Warn("JSON repair call failed", "model", model, "error", err)
		return nil, false
	}
	return ExtractJSON(raw)
}

// normalizeRiskLevel rewrites risk_level in place via lower-cased prefix
// match. Anything unrecognized, including a missing field, becomes Medium -
// a documented default bias, not a failure.
func normalizeRiskLevel(parsed map[string]any) {
	rl, _ := parsed["risk_level"].(string)
	switch {
	case strings.HasPrefix(strings.ToLower(rl), "low"):
		parsed["risk_level"] = datatypes.RiskLow
	case strings.HasPrefix(strings.ToLower(rl), "med"):
		parsed["risk_level"] = datatypes.RiskMedium
	case strings.HasPrefix(strings.ToLower(rl), "high"):
		parsed["risk_level"] = datatypes.RiskHigh
	default:
		parsed["risk_level"] = datatypes.RiskMedium
	}
}
