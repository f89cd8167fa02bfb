// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ontology holds the in-memory model of a versioned compliance rule
// set: named constraints over extracted variables, the formula grammar they
// are written in, and the loaders that bring rule files into the process.
//
// An Ontology is immutable once loaded and validated. The Loader caches
// ontologies by name for the process lifetime; a new deployment picks up new
// versions.
package ontology

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Severity classifies what a failed constraint means for the caller.
type Severity string

const (
	// SeverityViolation marks a hard compliance failure.
	SeverityViolation Severity = "violation"

	// SeverityWarning marks an advisory rule; failures surface as warnings.
	SeverityWarning Severity = "warning"
)

// VarType is the declared solver-facing type of a variable.
type VarType string

const (
	VarBool VarType = "bool"
	VarInt  VarType = "int"
	VarReal VarType = "real"
)

// Numeric reports whether the declared type lowers into the numeric theory.
func (t VarType) Numeric() bool {
	return t == VarInt || t == VarReal
}

// VariableDecl declares a variable's type within one constraint. Declarations
// for the same name must agree across all constraints of an ontology.
type VariableDecl struct {
	Name string  `json:"name" validate:"required"`
	Type VarType `json:"type" validate:"required,oneof=bool int real"`
}

// ExtractorSpec tells the variable extractor how to pull one variable out of
// free text.
//
// Numeric kinds (percent, money, int, real, score) carry a regex whose first
// capture group is the value; money strips thousands separators and applies a
// trailing "k" multiplier. Boolean kinds carry keywords whose presence sets
// the flag. Default is the value assigned when extraction misses.
type ExtractorSpec struct {
	Type     string   `json:"type" validate:"required,oneof=percent money int real score bool boolean"`
	Pattern  string   `json:"pattern,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Default  any      `json:"default,omitempty"`
}

// UnmarshalJSON decodes the spec keeping Default's numeric text exact
// (json.Number rather than float64), the same discipline FormulaNode applies
// to its literals. A default of 43.3 must later compare equal to the literal
// 43.3, which its float64 approximation does not.
func (s *ExtractorSpec) UnmarshalJSON(data []byte) error {
	type plain ExtractorSpec

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var p plain
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*s = ExtractorSpec(p)
	return nil
}

// Constraint is one named compliance rule: a formula, a severity, and the
// message rendered when the rule fails. Category and Citation carry the
// regulatory provenance shown to callers.
type Constraint struct {
	ID          string         `json:"id" validate:"required"`
	Category    string         `json:"category,omitempty"`
	Description string         `json:"description,omitempty"`
	Formula     *FormulaNode   `json:"formula" validate:"required"`
	Severity    Severity       `json:"severity" validate:"required,oneof=violation warning"`
	Message     string         `json:"message" validate:"required"`
	Citation    string         `json:"citation,omitempty"`
	Variables   []VariableDecl `json:"variables,omitempty" validate:"dive"`
}

// Ontology is a versioned, named rule set. Constraints keep file order; that
// order is also the order verdicts and violations are reported in.
type Ontology struct {
	Name        string                   `json:"name" validate:"required"`
	Version     string                   `json:"version" validate:"required"`
	Description string                   `json:"description,omitempty"`
	Constraints []Constraint             `json:"constraints" validate:"required,min=1,dive"`
	Extractors  map[string]ExtractorSpec `json:"extractors,omitempty" validate:"dive"`
}

// structValidator checks the tag-level requirements. Shared and read-only,
// safe for concurrent use.
var structValidator = validator.New()

// Parse deserializes and validates one ontology document.
//
// Any structural or semantic problem is wrapped in ErrMalformedOntology so
// callers can distinguish configuration errors from verification failures.
func Parse(data []byte) (*Ontology, error) {
	var ont Ontology
	if err := json.Unmarshal(data, &ont); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOntology, err)
	}
	if err := ont.Validate(); err != nil {
		return nil, err
	}
	return &ont, nil
}

// Validate checks structural well-formedness before any constraint is
// evaluated:
//
//   - required fields present (name, version, at least one constraint)
//   - every constraint carries a non-empty formula
//   - constraint IDs unique within the ontology
//   - variable type declarations consistent across constraints
//
// A malformed ontology fails fast here with ErrMalformedOntology.
func (o *Ontology) Validate() error {
	if err := structValidator.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOntology, err)
	}

	seenIDs := make(map[string]bool, len(o.Constraints))
	declared := make(map[string]VarType)

	for i := range o.Constraints {
		c := &o.Constraints[i]

		if c.Formula.IsZero() {
			return fmt.Errorf("%w: constraint %q has an empty formula", ErrMalformedOntology, c.ID)
		}
		if seenIDs[c.ID] {
			return fmt.Errorf("%w: duplicate constraint id %q", ErrMalformedOntology, c.ID)
		}
		seenIDs[c.ID] = true

		for _, decl := range c.Variables {
			if prev, ok := declared[decl.Name]; ok && prev != decl.Type {
				return fmt.Errorf("%w: variable %q declared %s and %s in different constraints",
					ErrMalformedOntology, decl.Name, prev, decl.Type)
			}
			declared[decl.Name] = decl.Type
		}
	}
	return nil
}

// VariableTypes returns the merged name -> declared type mapping across all
// constraints. Validate must have passed, so declarations are consistent.
func (o *Ontology) VariableTypes() map[string]VarType {
	types := make(map[string]VarType)
	for i := range o.Constraints {
		for _, decl := range o.Constraints[i].Variables {
			types[decl.Name] = decl.Type
		}
	}
	return types
}

// ReferencedVariables returns every variable name referenced by any
// constraint formula, in constraint order then first-reference order. This
// is the exact variable set the extractor must cover.
func (o *Ontology) ReferencedVariables() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range o.Constraints {
		out = o.Constraints[i].Formula.Variables(seen, out)
	}
	return out
}
