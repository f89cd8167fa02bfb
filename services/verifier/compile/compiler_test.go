// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/aare-ai/aare-core/services/verifier/extract"
	"github.com/aare-ai/aare-core/services/verifier/ontology"
)

func parseFormula(t *testing.T, src string) *ontology.FormulaNode {
	t.Helper()
	var n ontology.FormulaNode
	if err := json.Unmarshal([]byte(src), &n); err != nil {
		t.Fatalf("parse formula %s: %v", src, err)
	}
	return &n
}

func numVal(n int64) extract.Value {
	return extract.Value{
		Type:       ontology.VarReal,
		Num:        big.NewRat(n, 1),
		Provenance: extract.ProvenanceFound,
		Explicit:   true,
	}
}

func boolVal(b bool) extract.Value {
	return extract.Value{
		Type:       ontology.VarBool,
		Bool:       b,
		Provenance: extract.ProvenanceFound,
		Explicit:   b,
	}
}

func TestCompile_ComparisonTruth(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		mapping extract.Mapping
		want    bool
	}{
		{
			name:    "strictly under threshold",
			formula: `{"op": "<=", "args": ["dti", 43]}`,
			mapping: extract.Mapping{"dti": numVal(35)},
			want:    true,
		},
		{
			name:    "exactly at threshold satisfies non-strict bound",
			formula: `{"op": "<=", "args": ["dti", 43]}`,
			mapping: extract.Mapping{"dti": numVal(43)},
			want:    true,
		},
		{
			name:    "over threshold",
			formula: `{"op": "<=", "args": ["dti", 43]}`,
			mapping: extract.Mapping{"dti": numVal(48)},
			want:    false,
		},
		{
			name:    "strict bound excludes the boundary",
			formula: `{"op": "<", "args": ["dti", 43]}`,
			mapping: extract.Mapping{"dti": numVal(43)},
			want:    false,
		},
		{
			name:    "numeric equality",
			formula: `{"op": "==", "args": ["credit_score", 620]}`,
			mapping: extract.Mapping{"credit_score": numVal(620)},
			want:    true,
		},
		{
			name:    "arithmetic inside comparison",
			formula: `{"op": ">", "args": [{"op": "*", "args": ["loan_amount", 2]}, 1000]}`,
			mapping: extract.Mapping{"loan_amount": numVal(600)},
			want:    true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			compiled, err := Compile(parseFormula(t, tc.formula), tc.mapping)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if len(compiled.Atoms) != 1 {
				t.Fatalf("got %d atoms, want 1: %+v", len(compiled.Atoms), compiled.Atoms)
			}
			if compiled.Atoms[0].Truth != tc.want {
				t.Errorf("atom %q truth = %t, want %t",
					compiled.Atoms[0].Name, compiled.Atoms[0].Truth, tc.want)
			}
		})
	}
}

func TestCompile_ExactRationals(t *testing.T) {
	// 0.1 + 0.2 == 0.3 holds exactly in rational arithmetic; under float64
	// it does not. The compiler must discharge it as true.
	formula := parseFormula(t, `{"op": "==", "args": [{"op": "+", "args": [0.1, 0.2]}, 0.3]}`)
	compiled, err := Compile(formula, extract.Mapping{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !compiled.Atoms[0].Truth {
		t.Error("exact rational sum did not compare equal")
	}
}

func TestCompile_AtomNames(t *testing.T) {
	formula := parseFormula(t, `{"op": "<=", "args": ["dti", 43]}`)
	compiled, err := Compile(formula, extract.Mapping{"dti": numVal(48)})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if compiled.Atoms[0].Name != "(dti <= 43)" {
		t.Errorf("atom name = %q, want %q", compiled.Atoms[0].Name, "(dti <= 43)")
	}
}

func TestCompile_BooleanStructure(t *testing.T) {
	formula := parseFormula(t, `{"op": "or", "args": [
		{"op": ">=", "args": ["credit_score", 620]},
		{"op": "not", "args": ["escrow_waived"]}
	]}`)
	mapping := extract.Mapping{
		"credit_score":  numVal(580),
		"escrow_waived": boolVal(true),
	}
	compiled, err := Compile(formula, mapping)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(compiled.Atoms) != 2 {
		t.Fatalf("got %d atoms, want 2: %+v", len(compiled.Atoms), compiled.Atoms)
	}
	if compiled.Atoms[0].Name != "(credit_score >= 620)" || compiled.Atoms[0].Truth {
		t.Errorf("atom[0] = %+v", compiled.Atoms[0])
	}
	if compiled.Atoms[1].Name != "escrow_waived" || !compiled.Atoms[1].Truth {
		t.Errorf("atom[1] = %+v", compiled.Atoms[1])
	}
}

func TestCompile_BooleanEquality(t *testing.T) {
	formula := parseFormula(t, `{"op": "==", "args": ["is_denial", "has_specific_reason"]}`)
	mapping := extract.Mapping{
		"is_denial":           boolVal(true),
		"has_specific_reason": boolVal(false),
	}
	compiled, err := Compile(formula, mapping)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(compiled.Atoms) != 2 {
		t.Errorf("boolean equality must keep both sides as atoms, got %+v", compiled.Atoms)
	}
}

func TestCompile_MinMax(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		want    bool
	}{
		{"min picks smaller", `{"op": "==", "args": [{"op": "min", "args": [3, 7]}, 3]}`, true},
		{"max picks larger", `{"op": "==", "args": [{"op": "max", "args": [3, 7]}, 7]}`, true},
		{"min tie is the common value", `{"op": "==", "args": [{"op": "min", "args": [5, 5]}, 5]}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			compiled, err := Compile(parseFormula(t, tc.formula), extract.Mapping{})
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if compiled.Atoms[0].Truth != tc.want {
				t.Errorf("truth = %t, want %t", compiled.Atoms[0].Truth, tc.want)
			}
		})
	}
}

func TestCompile_NumericIte(t *testing.T) {
	formula := parseFormula(t, `{"op": "<=", "args": [
		{"op": "ite", "args": [{"op": ">", "args": ["dti", 40]}, 100, 0]},
		50
	]}`)

	compiled, err := Compile(formula, extract.Mapping{"dti": numVal(35)})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !compiled.Atoms[0].Truth {
		t.Error("else branch (0 <= 50) should hold")
	}

	compiled, err = Compile(formula, extract.Mapping{"dti": numVal(45)})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if compiled.Atoms[0].Truth {
		t.Error("then branch (100 <= 50) should not hold")
	}
}

func TestCompile_Deterministic(t *testing.T) {
	formula := parseFormula(t, `{"op": "and", "args": [
		{"op": "<=", "args": ["dti", 43]},
		{"op": ">=", "args": ["credit_score", 620]}
	]}`)
	mapping := extract.Mapping{"dti": numVal(35), "credit_score": numVal(700)}

	first, err := Compile(formula, mapping)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := Compile(formula, mapping)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(first.Atoms) != len(second.Atoms) {
		t.Fatalf("atom counts differ: %d vs %d", len(first.Atoms), len(second.Atoms))
	}
	for i := range first.Atoms {
		if first.Atoms[i] != second.Atoms[i] {
			t.Errorf("atom[%d] differs between runs: %+v vs %+v", i, first.Atoms[i], second.Atoms[i])
		}
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		mapping extract.Mapping
		wantErr error
	}{
		{
			name:    "unresolved variable",
			formula: `{"op": "<=", "args": ["unknown_var", 1]}`,
			mapping: extract.Mapping{},
			wantErr: ErrUnresolvedVariable,
		},
		{
			name:    "numeric variable in boolean position",
			formula: `{"op": "not", "args": ["dti"]}`,
			mapping: extract.Mapping{"dti": numVal(35)},
			wantErr: ErrTypeMismatch,
		},
		{
			name:    "boolean variable in numeric position",
			formula: `{"op": "<=", "args": ["escrow_waived", 1]}`,
			mapping: extract.Mapping{"escrow_waived": boolVal(true)},
			wantErr: ErrTypeMismatch,
		},
		{
			name:    "mixed-kind equality",
			formula: `{"op": "==", "args": ["dti", "escrow_waived"]}`,
			mapping: extract.Mapping{"dti": numVal(35), "escrow_waived": boolVal(true)},
			wantErr: ErrTypeMismatch,
		},
		{
			name:    "unknown operator",
			formula: `{"op": "xor", "args": ["a", "b"]}`,
			mapping: extract.Mapping{"a": boolVal(true), "b": boolVal(false)},
			wantErr: ErrUnsupportedOperator,
		},
		{
			name:    "division by zero",
			formula: `{"op": "<=", "args": [{"op": "/", "args": ["dti", 0]}, 1]}`,
			mapping: extract.Mapping{"dti": numVal(35)},
			wantErr: ErrDivisionByZero,
		},
		{
			name:    "ite branches do not unify",
			formula: `{"op": "ite", "args": [true, 1, false]}`,
			mapping: extract.Mapping{},
			wantErr: ErrTypeMismatch,
		},
		{
			name:    "not with wrong arity",
			formula: `{"op": "not", "args": [true, false]}`,
			mapping: extract.Mapping{},
			wantErr: ErrUnsupportedOperator,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(parseFormula(t, tc.formula), tc.mapping)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCompiled_Pins(t *testing.T) {
	formula := parseFormula(t, `{"op": "<=", "args": ["dti", 43]}`)
	compiled, err := Compile(formula, extract.Mapping{"dti": numVal(48)})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if compiled.Pins() == nil {
		t.Fatal("Pins returned nil")
	}

	empty := &Compiled{}
	if empty.Pins() == nil {
		t.Error("empty pin set must still be a valid formula")
	}
}
