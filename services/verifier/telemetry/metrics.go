// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the verifier service.
//
// All metrics use the "verifier_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// --- Verification Metrics ---

	// VerificationsTotal counts verification runs by ontology and outcome.
	VerificationsTotal metric.Int64Counter

	// VerificationDuration records end-to-end verification duration in seconds.
	VerificationDuration metric.Float64Histogram

	// ConstraintChecksTotal counts individual constraint checks by solver status.
	ConstraintChecksTotal metric.Int64Counter

	// SolverTimeoutsTotal counts constraint checks aborted by their budget.
	SolverTimeoutsTotal metric.Int64Counter

	// --- Extraction Metrics ---

	// VariablesDefaultedTotal counts variables filled from ontology defaults.
	VariablesDefaultedTotal metric.Int64Counter

	// --- Ontology Metrics ---

	// OntologyLoadsTotal counts ontology loads by source and status.
	OntologyLoadsTotal metric.Int64Counter

	// --- Error Metrics ---

	// ErrorsTotal counts total errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all instruments initialized.
//	error - Non-nil if metric registration fails.
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"verifier_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"verifier_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.VerificationsTotal, err = meter.Int64Counter(
		"verifier_verifications_total",
		metric.WithDescription("Total verification runs"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create verifications_total: %w", err)
	}

	m.VerificationDuration, err = meter.Float64Histogram(
		"verifier_verification_duration_seconds",
		metric.WithDescription("End-to-end verification duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create verification_duration: %w", err)
	}

	m.ConstraintChecksTotal, err = meter.Int64Counter(
		"verifier_constraint_checks_total",
		metric.WithDescription("Total constraint checks by solver status"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create constraint_checks_total: %w", err)
	}

	m.SolverTimeoutsTotal, err = meter.Int64Counter(
		"verifier_solver_timeouts_total",
		metric.WithDescription("Constraint checks aborted by their time budget"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create solver_timeouts_total: %w", err)
	}

	m.VariablesDefaultedTotal, err = meter.Int64Counter(
		"verifier_variables_defaulted_total",
		metric.WithDescription("Variables filled from ontology defaults"),
		metric.WithUnit("{variable}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create variables_defaulted_total: %w", err)
	}

	m.OntologyLoadsTotal, err = meter.Int64Counter(
		"verifier_ontology_loads_total",
		metric.WithDescription("Ontology loads by status"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ontology_loads_total: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"verifier_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}
