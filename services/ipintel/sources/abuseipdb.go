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

const abuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2/check"

// AbuseIPDB queries the AbuseIPDB reputation API for abuse reports on an
// address. Responses are unwrapped to the inner "data" object.
type AbuseIPDB struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
}

// NewAbuseIPDB builds the AbuseIPDB source.
func NewAbuseIPDB(apiKey string, client HTTPClient) *AbuseIPDB {
	return &AbuseIPDB{apiKey: apiKey, baseURL: abuseIPDBBaseURL, httpClient: client}
}

// Name implements Source.
func (a *AbuseIPDB) Name() string { return "abuseipdb" }

// Fetch implements Source. Failures come back as error markers, never as
// Go errors.
func (a *AbuseIPDB) Fetch(ctx context.Context, ip string) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s?ipAddress=%s&maxAgeInDays=90", a.baseURL, url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errorMarker(a.Name(), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errorMarker(a.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorMarker(a.Name(), fmt.Errorf("AbuseIPDB returned status %s", resp.Status))
	}

	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errorMarker(a.Name(), fmt.Errorf("failed to decode AbuseIPDB JSON: %w", err))
	}
	if body.Data == nil {
		return map[string]any{}
	}
	return body.Data
}
