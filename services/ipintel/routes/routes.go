// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/AleutianAI/AleutianSentry/services/ipintel/handlers"
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the API surface on the router.
func SetupRoutes(router *gin.Engine, analyzer handlers.Analyzer) {
	router.Use(corsMiddleware())

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/v1")
	{
		v1.GET("/analyze-ip", handlers.AnalyzeIP(analyzer))
	}
}

// corsMiddleware allows browser frontends on other origins to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
