// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solver wraps the decision procedure behind a narrow session
// contract (assert, check-sat, model) so any conformant procedure is
// substitutable. The default session drives the gophersat SAT solver.
package solver

import (
	"context"

	"github.com/crillab/gophersat/bf"
)

// Name identifies the backing decision procedure in responses and logs.
const Name = "gophersat"

// Status is the outcome of one satisfiability check.
type Status int

const (
	// StatusSat means a satisfying model was found.
	StatusSat Status = iota

	// StatusUnsat means the asserted formulas are unsatisfiable.
	StatusUnsat

	// StatusUnknown means the procedure gave up without an answer.
	StatusUnknown

	// StatusTimeout means the check was aborted by its time budget.
	StatusTimeout
)

// String returns the wire-format name of the status.
func (s Status) String() string {
	switch s {
	case StatusSat:
		return "sat"
	case StatusUnsat:
		return "unsat"
	case StatusUnknown:
		return "unknown"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Model assigns a truth value to every atom of a satisfying assignment.
type Model map[string]bool

// Session is one exclusive conversation with the decision procedure.
//
// Sessions are owned by a single request for its lifetime and are not safe
// for concurrent use; solver internals are assumed non-reentrant.
type Session interface {
	// Assert adds a formula to the current assertion set.
	Assert(f bf.Formula)

	// CheckSat decides satisfiability of the conjunction of all asserted
	// formulas. An elapsed context deadline aborts the check and yields
	// StatusTimeout, never a partial answer.
	CheckSat(ctx context.Context) (Status, Model)

	// Reset clears the assertion set for the next constraint, keeping
	// the session itself alive.
	Reset()
}

// GopherSession is the gophersat-backed Session.
type GopherSession struct {
	asserted []bf.Formula
}

// NewSession creates a fresh session with an empty assertion set.
func NewSession() *GopherSession {
	return &GopherSession{}
}

// Assert adds a formula to the assertion set.
func (s *GopherSession) Assert(f bf.Formula) {
	s.asserted = append(s.asserted, f)
}

// Reset clears the assertion set.
func (s *GopherSession) Reset() {
	s.asserted = s.asserted[:0]
}

// CheckSat runs the solver on a separate goroutine and races it against
// the context. gophersat has no preemption hook, so an expired budget
// abandons the in-flight solve; the goroutine finishes on its own and its
// late result is discarded.
func (s *GopherSession) CheckSat(ctx context.Context) (Status, Model) {
	if len(s.asserted) == 0 {
		// Empty conjunction is trivially satisfiable.
		return StatusSat, Model{}
	}
	if ctx.Err() != nil {
		return StatusTimeout, nil
	}

	conj := bf.And(s.asserted...)

	resultCh := make(chan map[string]bool, 1)
	go func() {
		resultCh <- bf.Solve(conj)
	}()

	select {
	case <-ctx.Done():
		return StatusTimeout, nil
	case model := <-resultCh:
		if model == nil {
			return StatusUnsat, nil
		}
		out := make(Model, len(model))
		for name, truth := range model {
			out[name] = truth
		}
		return StatusSat, out
	}
}

var _ Session = (*GopherSession)(nil)
