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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const ipqsBaseURL = "https://ipqualityscore.com/api/json/ip"

// IPQualityScore queries the IPQualityScore fraud API. The full response
// payload is passed through; the normalizer picks out proxy and fraud_score.
type IPQualityScore struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
}

// NewIPQualityScore builds the IPQualityScore source.
func NewIPQualityScore(apiKey string, client HTTPClient) *IPQualityScore {
	return &IPQualityScore{apiKey: apiKey, baseURL: ipqsBaseURL, httpClient: client}
}

// Name implements Source.
func (q *IPQualityScore) Name() string { return "ipqualityscore" }

// Fetch implements Source.
func (q *IPQualityScore) Fetch(ctx context.Context, ip string) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/%s/%s", q.baseURL, url.PathEscape(q.apiKey), url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errorMarker(q.Name(), err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return errorMarker(q.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorMarker(q.Name(), fmt.Errorf("IPQualityScore returned status %s", resp.Status))
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return errorMarker(q.Name(), fmt.Errorf("failed to decode IPQualityScore JSON: %w", err))
	}
	return data
}
