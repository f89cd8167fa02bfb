// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verifier

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultAllowedOrigins is the CORS allowlist used when no origins are
// configured.
var DefaultAllowedOrigins = []string{
	"https://aare.ai",
	"https://www.aare.ai",
	"http://localhost:8000",
	"http://localhost:3000",
}

// RegisterRoutes registers all verifier routes with the router group.
//
// Description:
//
//	Registers all /v1/verify* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/verify - Verify LLM output against an ontology
//	GET  /v1/verify/ontologies - List loadable ontologies
//	GET  /v1/verify/health - Health check
//
// Example:
//
//	service := verifier.NewService(verifier.ServiceConfig{Loader: loader})
//	handlers := verifier.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	verifier.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	verify := rg.Group("/verify")
	{
		verify.POST("", handlers.HandleVerify)
		verify.GET("/ontologies", handlers.HandleListOntologies)
		verify.GET("/health", handlers.HandleHealth)
	}
}

// CORSMiddleware answers preflight requests and sets CORS headers from an
// origin allowlist. Requests from unknown origins are answered with the
// primary (first) allowed origin rather than rejected; browsers enforce
// the mismatch.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	primary := allowedOrigins[0]

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if !allowed[origin] {
			origin = primary
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Headers", "Content-Type,x-api-key,Authorization")
		c.Header("Access-Control-Allow-Methods", "OPTIONS,POST")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
