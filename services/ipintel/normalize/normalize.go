// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize merges the heterogeneous source payloads into one flat,
// source-agnostic record.
//
// The normalizer is a pure function: no network, no state, deterministic for
// a given input. Missing keys and failed sources produce nil fields, never
// errors - downstream consumers (the LLM and the API response) handle absent
// data themselves. The raw payloads are always attached verbatim under
// raw_sources for audit and LLM context.
package normalize

import "github.com/AleutianAI/AleutianSentry/services/ipintel/sources"

// safeExtract reads a field from a source payload, tolerating nil payloads
// and missing keys.
func safeExtract(data map[string]any, key string) any {
	if data == nil {
		return nil
	}
	return data[key]
}

// MergeSources builds the normalized record for one address.
//
// The record always contains the ip and raw_sources keys, even when every
// source failed; any other field may be nil when its source failed or left
// the field out.
func MergeSources(ip string, set sources.SourceSet) map[string]any {
	fraudScore := safeExtract(set.IPQS, "fraud_score")

	return map[string]any{
		"ip":       ip,
		"hostname": safeExtract(set.Geo, "hostname"),
		"isp":      safeExtract(set.Geo, "isp"),
		"country":  safeExtract(set.Geo, "country"),

		"abuse_score":    safeExtract(set.Abuse, "abuseConfidenceScore"),
		"recent_reports": safeExtract(set.Abuse, "totalReports"),

		"vpn_proxy":   safeExtract(set.IPQS, "proxy"),
		"fraud_score": fraudScore,

		"raw_sources": set.RawSources(),
	}
}

// MinimalRecord builds the degenerate record used when source aggregation
// failed partially or completely: just the address, the raw payloads (error
// markers included), and a human-readable warning.
func MinimalRecord(ip string, set sources.SourceSet, warning string) map[string]any {
	return map[string]any{
		"ip":          ip,
		"raw_sources": set.RawSources(),
		"warning":     warning,
	}
}
