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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aare-ai/aare-core/services/verifier/ontology"
)

// Handlers contains the HTTP handlers for the verifier service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleVerify handles POST /v1/verify.
//
// Description:
//
//	Verifies free-text LLM output against a named constraint ontology.
//	Constraint-level failures degrade to warnings inside a 200 response;
//	only request and ontology problems produce error statuses.
//
// Request Body:
//
//	VerifyRequest
//
// Response:
//
//	200 OK: VerifyResponse
//	400 Bad Request: Missing or invalid request fields
//	404 Not Found: Unknown ontology name
//	422 Unprocessable Entity: Ontology failed validation
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleVerify(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleVerify")

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: llm_output is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.svc.RequestTimeout())
	defer cancel()

	logger.Info("Verifying output",
		"ontology", req.Ontology,
		"text_len", len(req.LLMOutput))

	resp, err := h.svc.Verify(ctx, req.LLMOutput, req.Ontology)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "VERIFY_FAILED"

		if errors.Is(err, ontology.ErrOntologyNotFound) {
			statusCode = http.StatusNotFound
			errCode = "ONTOLOGY_NOT_FOUND"
		} else if errors.Is(err, ontology.ErrMalformedOntology) {
			statusCode = http.StatusUnprocessableEntity
			errCode = "MALFORMED_ONTOLOGY"
		}

		logger.Error("Verification failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Verification complete",
		"verification_id", resp.VerificationID,
		"verified", resp.Verified,
		"violations", len(resp.Violations),
		"warnings", len(resp.Warnings),
		"execution_time_ms", resp.ExecutionTimeMs)

	c.JSON(http.StatusOK, resp)
}

// HandleListOntologies handles GET /v1/verify/ontologies.
//
// Response:
//
//	200 OK: OntologiesResponse
func (h *Handlers) HandleListOntologies(c *gin.Context) {
	c.JSON(http.StatusOK, OntologiesResponse{
		Ontologies: h.svc.ListOntologies(c.Request.Context()),
	})
}

// HandleHealth handles GET /v1/verify/health.
//
// Description:
//
//	Returns the health status of the service. Always returns 200 if running.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// getOrCreateRequestID returns the X-Request-ID header, generating one if
// the caller did not supply it, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
