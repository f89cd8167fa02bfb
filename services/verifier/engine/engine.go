// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs every constraint of an ontology against an extracted
// variable mapping and produces one verdict per constraint.
//
// A constraint holds iff its negation is unsatisfiable under the bound
// variable values. The engine compiles each formula, asserts the negated
// skeleton together with the atom truth pins, and asks the solver session
// for a model. A model is a concrete counterexample; unsat is a proof.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/crillab/gophersat/bf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aare-ai/aare-core/services/verifier/compile"
	"github.com/aare-ai/aare-core/services/verifier/extract"
	"github.com/aare-ai/aare-core/services/verifier/ontology"
	"github.com/aare-ai/aare-core/services/verifier/solver"
)

var tracer = otel.Tracer("aare.engine")

// Proof metadata reported with every verification result.
const (
	ProofMethod  = "negation-satisfiability"
	ProofVersion = "1.0"
)

// DefaultBudgetFloor is the minimum solve budget granted to a single
// constraint even when the remaining request deadline is nearly spent.
const DefaultBudgetFloor = 50 * time.Millisecond

// Verdict is the outcome of checking one constraint.
//
// Status is the solver's answer for the negation check: unsat proves the
// constraint, sat refutes it, unknown and timeout leave it unverified.
type Verdict struct {
	ConstraintID   string
	Satisfied      bool
	Status         solver.Status
	Counterexample solver.Model
	Err            error
}

// Unverified reports whether the constraint got no definitive answer.
func (v Verdict) Unverified() bool {
	return v.Status != solver.StatusSat && v.Status != solver.StatusUnsat
}

// Report aggregates the verdicts of one verification run.
type Report struct {
	Verified bool
	Verdicts []Verdict
}

// Options configure a Verifier.
type Options struct {
	// BudgetFloor overrides DefaultBudgetFloor when positive.
	BudgetFloor time.Duration

	// NewSession supplies a fresh solver session per run. Defaults to
	// the gophersat session.
	NewSession func() solver.Session

	Logger *slog.Logger
}

// Verifier checks constraints sequentially in ontology order.
type Verifier struct {
	budgetFloor time.Duration
	newSession  func() solver.Session
	logger      *slog.Logger
}

// New creates a Verifier, filling unset options with defaults.
func New(opts Options) *Verifier {
	v := &Verifier{
		budgetFloor: opts.BudgetFloor,
		newSession:  opts.NewSession,
		logger:      opts.Logger,
	}
	if v.budgetFloor <= 0 {
		v.budgetFloor = DefaultBudgetFloor
	}
	if v.newSession == nil {
		v.newSession = func() solver.Session { return solver.NewSession() }
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Verify checks every constraint of ont against the bound values in mapping.
//
// Description:
//
//	Constraints are checked one at a time in declaration order with a fresh
//	solver session owned by this call. The remaining request deadline is
//	divided evenly across the constraints still pending, never below the
//	budget floor and never beyond the deadline itself. A compile failure
//	degrades that constraint to an unknown verdict; an exhausted deadline
//	stamps every remaining constraint with a timeout verdict rather than
//	skipping it silently.
//
// Inputs:
//
//	ctx - Carries the overall request deadline.
//	ont - Parsed ontology whose constraints are checked.
//	mapping - Variable bindings from extraction; every referenced variable
//	  must be present or the affected constraint degrades to unknown.
//
// Outputs:
//
//	Report - One verdict per constraint, plus the aggregate Verified flag,
//	  which is true iff every constraint was proven.
//
// Thread Safety: safe for concurrent use; all run state is call-local.
func (v *Verifier) Verify(ctx context.Context, ont *ontology.Ontology, mapping extract.Mapping) Report {
	ctx, span := tracer.Start(ctx, "engine.Verify",
		trace.WithAttributes(
			attribute.String("ontology.name", ont.Name),
			attribute.String("ontology.version", ont.Version),
			attribute.Int("ontology.constraints", len(ont.Constraints)),
		),
	)
	defer span.End()

	start := time.Now()
	session := v.newSession()
	verdicts := make([]Verdict, 0, len(ont.Constraints))

	deadline, hasDeadline := ctx.Deadline()

	for i, c := range ont.Constraints {
		if hasDeadline && !time.Now().Before(deadline) {
			for _, rest := range ont.Constraints[i:] {
				verdicts = append(verdicts, Verdict{
					ConstraintID: rest.ID,
					Status:       solver.StatusTimeout,
				})
			}
			v.logger.Warn("verification deadline exhausted",
				slog.String("ontology", ont.Name),
				slog.Int("unchecked", len(ont.Constraints)-i),
			)
			break
		}
		verdicts = append(verdicts, v.checkOne(ctx, c, mapping, len(ont.Constraints)-i, deadline, hasDeadline, session))
	}

	verified := true
	for _, vd := range verdicts {
		if !vd.Satisfied {
			verified = false
			break
		}
	}

	span.SetAttributes(
		attribute.Bool("verified", verified),
		attribute.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	v.logger.Info("verification complete",
		slog.String("ontology", ont.Name),
		slog.Bool("verified", verified),
		slog.Int("constraints", len(verdicts)),
		slog.Duration("took", time.Since(start)),
	)

	return Report{Verified: verified, Verdicts: verdicts}
}

// checkOne compiles and decides a single constraint within its time slice.
func (v *Verifier) checkOne(ctx context.Context, c ontology.Constraint, mapping extract.Mapping, pending int, deadline time.Time, hasDeadline bool, session solver.Session) Verdict {
	compiled, err := compile.Compile(c.Formula, mapping)
	if err != nil {
		v.logger.Warn("constraint compilation failed",
			slog.String("constraint", c.ID),
			slog.String("error", err.Error()),
		)
		return Verdict{
			ConstraintID: c.ID,
			Status:       solver.StatusUnknown,
			Err:          err,
		}
	}

	session.Reset()
	session.Assert(bf.Not(compiled.Skeleton))
	session.Assert(compiled.Pins())

	checkCtx := ctx
	if hasDeadline {
		remaining := time.Until(deadline)
		slice := remaining / time.Duration(pending)
		if slice < v.budgetFloor {
			slice = v.budgetFloor
		}
		if slice > remaining {
			slice = remaining
		}
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, slice)
		defer cancel()
	}

	status, model := session.CheckSat(checkCtx)
	verdict := Verdict{
		ConstraintID: c.ID,
		Status:       status,
	}
	switch status {
	case solver.StatusUnsat:
		verdict.Satisfied = true
	case solver.StatusSat:
		verdict.Counterexample = model
	}
	return verdict
}
