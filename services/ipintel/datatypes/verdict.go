// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared types of the IP intelligence service.
package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Risk Levels
// =============================================================================

// Risk levels produced by the assessor. RiskUnknown marks a degraded verdict
// from a failure path; it is never cached.
const (
	RiskLow     = "Low"
	RiskMedium  = "Medium"
	RiskHigh    = "High"
	RiskUnknown = "unknown"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// verdictValidate is the validator instance for verdict schema checks.
var verdictValidate *validator.Validate

func init() {
	verdictValidate = validator.New()
}

// =============================================================================
// Verdict
// =============================================================================

// Verdict is the structured risk assessment for one address.
//
// # Description
//
// A Verdict is either "complete" (produced by a model, all fields well formed,
// RiskLevel one of Low/Medium/High) or "degraded" (produced by a failure path:
// RiskLevel unknown, zero confidence, empty recommendations, nil ModelUsed).
// Verdicts are immutable values; failure paths build a fresh one rather than
// mutating an existing one.
//
// # Thread Safety
//
// Safe to share by value. Recommendations must not be appended to after
// construction.
type Verdict struct {
	// RiskLevel is Low, Medium, High, or unknown (degraded only).
	RiskLevel string `json:"risk_level" validate:"required,oneof=Low Medium High"`

	// RiskAnalysis is the model's free-text reasoning.
	RiskAnalysis string `json:"risk_analysis"`

	// Recommendations is an ordered list of suggested actions.
	Recommendations []string `json:"recommendations" validate:"required"`

	// Confidence is the model's self-reported confidence in [0,1].
	// Out-of-range values are rejected, never clamped.
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`

	// ModelUsed identifies the model that produced the verdict.
	// Nil for degraded verdicts.
	ModelUsed *string `json:"model_used"`
}

// Complete reports whether the verdict came from a model rather than a
// failure path.
func (v Verdict) Complete() bool {
	return v.RiskLevel != RiskUnknown && v.ModelUsed != nil
}

// Validate checks the verdict against the output schema. A complete verdict
// must carry a recognized risk level and an in-range confidence.
func (v Verdict) Validate() error {
	if err := verdictValidate.Struct(v); err != nil {
		return fmt.Errorf("verdict schema violation: %w", err)
	}
	return nil
}

// ToMap flattens the verdict into the generic mapping shape used when merging
// it with a normalized record for the response body and the cache entry.
func (v Verdict) ToMap() map[string]any {
	recs := make([]any, len(v.Recommendations))
	for i, r := range v.Recommendations {
		recs[i] = r
	}
	m := map[string]any{
		"risk_level":      v.RiskLevel,
		"risk_analysis":   v.RiskAnalysis,
		"recommendations": recs,
		"confidence":      v.Confidence,
		"model_used":      nil,
	}
	if v.ModelUsed != nil {
		m["model_used"] = *v.ModelUsed
	}
	return m
}

// DegradedVerdict builds the fail-soft verdict returned when a component
// exhausted its options. It is intentionally not cacheable.
func DegradedVerdict(analysis string) Verdict {
	return Verdict{
		RiskLevel:       RiskUnknown,
		RiskAnalysis:    analysis,
		Recommendations: []string{},
		Confidence:      0.0,
		ModelUsed:       nil,
	}
}

// VerdictFromMap decodes untrusted model output (already parsed to a mapping)
// into a Verdict.
//
// # Description
//
// The mapping must contain the risk_analysis, recommendations, and confidence
// keys; risk_level and model_used are expected to have been normalized and
// stamped by the assessor before this call. Wrong-shaped values (a string
// confidence, a scalar recommendations) fail the JSON re-decode and are
// reported as errors so that the attempt can be retried.
//
// # Inputs
//
//   - m: parsed model output after risk-level normalization
//
// # Outputs
//
//   - Verdict: decoded verdict, valid only when err is nil
//   - error: missing key, shape mismatch, or schema violation
func VerdictFromMap(m map[string]any) (Verdict, error) {
	for _, key := range []string{"risk_level", "risk_analysis", "recommendations", "confidence"} {
		if _, ok := m[key]; !ok {
			return Verdict{}, fmt.Errorf("verdict missing required field %q", key)
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return Verdict{}, fmt.Errorf("verdict re-encode failed: %w", err)
	}
	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return Verdict{}, fmt.Errorf("verdict shape mismatch: %w", err)
	}
	if err := v.Validate(); err != nil {
		return Verdict{}, err
	}
	return v, nil
}
