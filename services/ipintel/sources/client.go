// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sources wraps the external threat-intelligence providers.
//
// Every source catches its own transport errors and returns a data-shaped
// error marker instead of a Go error: the pipeline only ever sees mappings.
// A marker is any mapping with an "error" key carrying the failure message.
package sources

import (
	"log/slog"
	"net/http"
	"time"
)

// fetchTimeout bounds each outbound source call. A timeout fails only that
// source; the other lookups keep running.
const fetchTimeout = 5 * time.Second

// HTTPClient interface allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient returns the shared production client for source lookups.
func DefaultHTTPClient() HTTPClient {
	return &http.Client{Timeout: fetchTimeout}
}

// errorMarker converts a source failure into the mapping shape the pipeline
// expects. The service name is kept so the LLM can still reason from the
// failure text.
func errorMarker(service string, err error) map[string]any {
	slog.Error("Source lookup failed", "service", service, "error", err)
	return map[string]any{
		"error":   err.Error(),
		"service": service,
	}
}

// IsErrorMarker reports whether a source payload is an error marker.
func IsErrorMarker(payload map[string]any) bool {
	_, ok := payload["error"]
	return ok
}
