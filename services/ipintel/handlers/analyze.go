// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianSentry/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Analyzer runs the risk pipeline for one address. Satisfied by
// *pipeline.Pipeline.
type Analyzer interface {
	AnalyzeIP(ctx context.Context, ip string) map[string]any
}

// AnalyzeIP handles GET /v1/analyze-ip?ip=<address>.
//
// Invalid addresses are the only client error this endpoint produces.
// Everything past validation is "always 200 with best-effort content":
// pipeline failures surface as unknown risk levels in the body, never as
// a 5xx.
func AnalyzeIP(analyzer Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, err := validation.SanitizeIP(c.Query("ip"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid IP address", "details": err.Error()})
			return
		}

		requestID := uuid.NewString()
		slog.Info("Handling IP analysis request", "request_id", requestID, "ip", ip)

		result := analyzer.AnalyzeIP(c.Request.Context(), ip)

		slog.Info("IP analysis complete", "request_id", requestID, "ip", ip, "risk_level", result["risk_level"])
		c.JSON(http.StatusOK, result)
	}
}
