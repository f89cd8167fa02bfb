// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package verifier implements the compliance verification service: it
// extracts typed variables from free text, checks them against a named
// constraint ontology with a formal solver, and assembles the verdict
// into the HTTP response contract.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aare-ai/aare-core/services/verifier/engine"
	"github.com/aare-ai/aare-core/services/verifier/extract"
	"github.com/aare-ai/aare-core/services/verifier/ontology"
	"github.com/aare-ai/aare-core/services/verifier/solver"
	"github.com/aare-ai/aare-core/services/verifier/telemetry"
)

// DefaultRequestTimeout bounds one verification request end to end.
const DefaultRequestTimeout = 30 * time.Second

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Loader resolves ontology names. Required.
	Loader *ontology.Loader

	// Verifier checks constraints. Defaults to engine.New with defaults.
	Verifier *engine.Verifier

	// RequestTimeout overrides DefaultRequestTimeout when positive.
	RequestTimeout time.Duration

	// Metrics enables instrument recording when non-nil.
	Metrics *telemetry.Metrics

	Logger *slog.Logger
}

// Service orchestrates one verification run per request.
//
// Thread Safety: safe for concurrent use. Extractors are compiled once per
// loaded ontology and shared across requests.
type Service struct {
	loader   *ontology.Loader
	verifier *engine.Verifier
	timeout  time.Duration
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	// extractors caches compiled extractors keyed by ontology identity.
	// The loader hands out one pointer per cached ontology, so pointer
	// identity is a stable key.
	extractors sync.Map
}

// NewService creates a Service, filling unset config fields with defaults.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		loader:   cfg.Loader,
		verifier: cfg.Verifier,
		timeout:  cfg.RequestTimeout,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if s.verifier == nil {
		s.verifier = engine.New(engine.Options{Logger: cfg.Logger})
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RequestTimeout returns the per-request deadline the service expects its
// callers to apply.
func (s *Service) RequestTimeout() time.Duration {
	return s.timeout
}

// ListOntologies returns the names of all loadable ontologies, sorted.
func (s *Service) ListOntologies(ctx context.Context) []string {
	return s.loader.List(ctx)
}

// Verify runs the full pipeline for one request.
//
// Description:
//
//	Loads the named ontology, extracts the referenced variables from the
//	text, checks every constraint, and assembles the response. Constraint
//	level failures (compile errors, solver timeouts) degrade to warnings
//	in the response; only ontology load failures and extractor
//	compilation failures abort the request.
//
// Inputs:
//
//	ctx - Carries the request deadline the constraint budgets divide.
//	llmOutput - Free text to verify.
//	ontologyName - Ontology to verify against; empty means DefaultOntology.
//
// Outputs:
//
//	*VerifyResponse - The complete response body.
//	error - ErrOntologyNotFound, ErrMalformedOntology, or a context error.
//
// Thread Safety: safe for concurrent use.
func (s *Service) Verify(ctx context.Context, llmOutput, ontologyName string) (*VerifyResponse, error) {
	start := time.Now()

	if ontologyName == "" {
		ontologyName = DefaultOntology
	}

	ont, err := s.loader.Load(ctx, ontologyName)
	if err != nil {
		s.countError(ctx, "ontology_load")
		return nil, err
	}

	extractor, err := s.extractorFor(ont)
	if err != nil {
		s.countError(ctx, "extractor_compile")
		return nil, err
	}

	extracted := extractor.Extract(llmOutput)
	report := s.verifier.Verify(ctx, ont, extracted.Mapping)

	resp := s.assemble(ont, extracted, report)
	resp.ExecutionTimeMs = time.Since(start).Milliseconds()

	s.recordMetrics(ctx, ont, extracted, report, time.Since(start))
	return resp, nil
}

// extractorFor returns the cached extractor for ont, compiling on first use.
func (s *Service) extractorFor(ont *ontology.Ontology) (*extract.Extractor, error) {
	if cached, ok := s.extractors.Load(ont); ok {
		return cached.(*extract.Extractor), nil
	}
	extractor, err := extract.NewExtractor(ont)
	if err != nil {
		return nil, err
	}
	actual, _ := s.extractors.LoadOrStore(ont, extractor)
	return actual.(*extract.Extractor), nil
}

// assemble combines extraction warnings, per-constraint verdicts, and
// ontology metadata into the response contract. Pure combination, no
// decision logic of its own.
func (s *Service) assemble(ont *ontology.Ontology, extracted extract.Result, report engine.Report) *VerifyResponse {
	violations := make([]string, 0)
	warnings := make([]string, 0, len(extracted.Warnings))
	warnings = append(warnings, extracted.Warnings...)

	byID := make(map[string]ontology.Constraint, len(ont.Constraints))
	for _, c := range ont.Constraints {
		byID[c.ID] = c
	}

	for _, verdict := range report.Verdicts {
		if verdict.Satisfied {
			continue
		}
		c := byID[verdict.ConstraintID]

		if verdict.Unverified() {
			warnings = append(warnings, unverifiedWarning(c.ID, verdict))
			continue
		}

		message := renderMessage(c.Message, extracted.Mapping)
		if c.Severity == ontology.SeverityWarning {
			warnings = append(warnings, message)
		} else {
			violations = append(violations, message)
		}
	}

	return &VerifyResponse{
		Verified:   report.Verified,
		Violations: violations,
		Warnings:   warnings,
		ParsedData: parsedData(extracted.Mapping),
		Ontology: OntologyInfo{
			Name:               ont.Name,
			Version:            ont.Version,
			ConstraintsChecked: len(ont.Constraints),
		},
		Proof: ProofInfo{
			Method:  engine.ProofMethod,
			Version: engine.ProofVersion,
		},
		Solver:         solver.Name,
		VerificationID: uuid.NewString(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// unverifiedWarning renders the warning for a constraint that got no
// definitive answer.
func unverifiedWarning(id string, verdict engine.Verdict) string {
	reason := "solver returned " + verdict.Status.String()
	if verdict.Status == solver.StatusTimeout {
		reason = "solver timeout"
	}
	if verdict.Err != nil {
		reason = verdict.Err.Error()
	}
	return fmt.Sprintf("Constraint '%s' could not be verified: %s", id, reason)
}

// renderMessage substitutes {variable} placeholders in a constraint message
// template with the extracted bindings. Unknown placeholders are left as-is.
func renderMessage(template string, mapping extract.Mapping) string {
	out := template
	for name, value := range mapping {
		placeholder := "{" + name + "}"
		if !strings.Contains(out, placeholder) {
			continue
		}
		out = strings.ReplaceAll(out, placeholder, renderValue(value))
	}
	return out
}

func renderValue(v extract.Value) string {
	if v.Type == ontology.VarBool {
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return ontology.FormatRat(v.Num)
}

// parsedData echoes only values literally present in the input, rendered as
// exact JSON numbers (integral rationals without a decimal point).
func parsedData(mapping extract.Mapping) map[string]any {
	out := make(map[string]any)
	for name, v := range mapping {
		if !v.Explicit {
			continue
		}
		if v.Type == ontology.VarBool {
			out[name] = v.Bool
			continue
		}
		out[name] = json.Number(ontology.FormatRat(v.Num))
	}
	return out
}

func (s *Service) countError(ctx context.Context, component string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("component", component)))
}

func (s *Service) recordMetrics(ctx context.Context, ont *ontology.Ontology, extracted extract.Result, report engine.Report, took time.Duration) {
	if s.metrics == nil {
		return
	}

	s.metrics.VerificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ontology", ont.Name),
		attribute.Bool("verified", report.Verified),
	))
	s.metrics.VerificationDuration.Record(ctx, took.Seconds(), metric.WithAttributes(
		attribute.String("ontology", ont.Name),
	))

	for _, verdict := range report.Verdicts {
		s.metrics.ConstraintChecksTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", verdict.Status.String()),
		))
		if verdict.Status == solver.StatusTimeout {
			s.metrics.SolverTimeoutsTotal.Add(ctx, 1)
		}
	}

	var defaulted int64
	for _, v := range extracted.Mapping {
		if v.Provenance == extract.ProvenanceDefaulted {
			defaulted++
		}
	}
	if defaulted > 0 {
		s.metrics.VariablesDefaultedTotal.Add(ctx, defaulted, metric.WithAttributes(
			attribute.String("ontology", ont.Name),
		))
	}
}
