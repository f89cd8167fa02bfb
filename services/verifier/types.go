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

// ServiceVersion is the verifier service version.
const ServiceVersion = "1.0.0"

// DefaultOntology is used when a request names no ontology.
const DefaultOntology = "mortgage-compliance-v1"

// VerifyRequest is the request body for POST /v1/verify.
type VerifyRequest struct {
	// LLMOutput is the free text to verify. Required.
	LLMOutput string `json:"llm_output" binding:"required"`

	// Ontology names the rule set to verify against.
	// Default: "mortgage-compliance-v1".
	Ontology string `json:"ontology"`
}

// OntologyInfo echoes the identity of the rule set that was checked.
type OntologyInfo struct {
	Name string `json:"name"`

	Version string `json:"version"`

	// ConstraintsChecked is the number of constraints in the ontology.
	ConstraintsChecked int `json:"constraints_checked"`
}

// ProofInfo describes how the verdict was established.
type ProofInfo struct {
	// Method is the proof strategy, e.g. "negation-satisfiability".
	Method string `json:"method"`

	// Version is the proof strategy version.
	Version string `json:"version"`
}

// VerifyResponse is the response for POST /v1/verify.
type VerifyResponse struct {
	// Verified is true iff every constraint was proven to hold.
	Verified bool `json:"verified"`

	// Violations holds the rendered message of each violated
	// violation-severity constraint, in ontology order.
	Violations []string `json:"violations"`

	// Warnings holds extraction defaults, warning-severity failures, and
	// constraints that could not be verified.
	Warnings []string `json:"warnings"`

	// ParsedData echoes the variable values found verbatim in the input.
	ParsedData map[string]any `json:"parsed_data"`

	Ontology OntologyInfo `json:"ontology"`

	Proof ProofInfo `json:"proof"`

	// Solver names the backing decision procedure.
	Solver string `json:"solver"`

	// VerificationID uniquely identifies this run.
	VerificationID string `json:"verification_id"`

	ExecutionTimeMs int64 `json:"execution_time_ms"`

	// Timestamp is the completion time in RFC 3339 UTC.
	Timestamp string `json:"timestamp"`
}

// OntologiesResponse is the response for GET /v1/verify/ontologies.
type OntologiesResponse struct {
	// Ontologies is the sorted list of loadable ontology names.
	Ontologies []string `json:"ontologies"`
}

// HealthResponse is the response for GET /v1/verify/health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}
