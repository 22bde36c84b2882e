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

const ipapiBaseURL = "https://ipapi.co"

// IPAPI queries ipapi.co for geolocation and network ownership data. Only the
// hostname, country, and ISP fields are projected out of the response.
type IPAPI struct {
	baseURL    string
	httpClient HTTPClient
}

// NewIPAPI builds the ipapi.co source. No API key is required for the free tier.
func NewIPAPI(client HTTPClient) *IPAPI {
	return &IPAPI{baseURL: ipapiBaseURL, httpClient: client}
}

// Name implements Source.
func (g *IPAPI) Name() string { return "ipapi" }

// Fetch implements Source.
func (g *IPAPI) Fetch(ctx context.Context, ip string) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/%s/json/", g.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errorMarker(g.Name(), err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return errorMarker(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorMarker(g.Name(), fmt.Errorf("ipapi returned status %s", resp.Status))
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return errorMarker(g.Name(), fmt.Errorf("failed to decode ipapi JSON: %w", err))
	}
	return map[string]any{
		"hostname": data["hostname"],
		"country":  data["country_name"],
		"isp":      data["org"],
	}
}
