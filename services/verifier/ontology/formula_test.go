// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestFormulaNode_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, n *FormulaNode)
	}{
		{
			name:  "bare string is a variable",
			input: `"dti"`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Op != OpVar || n.Name != "dti" {
					t.Errorf("got op=%q name=%q, want var dti", n.Op, n.Name)
				}
			},
		},
		{
			name:  "bare integer is an exact literal",
			input: `43`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Op != OpLit || n.Lit != LitNum {
					t.Fatalf("got op=%q lit=%d, want numeric literal", n.Op, n.Lit)
				}
				if n.Num.Cmp(big.NewRat(43, 1)) != 0 {
					t.Errorf("got %s, want 43", n.Num)
				}
			},
		},
		{
			name:  "decimal literal stays exact",
			input: `0.1`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Num.Cmp(big.NewRat(1, 10)) != 0 {
					t.Errorf("got %s, want exactly 1/10", n.Num)
				}
			},
		},
		{
			name:  "bare bool is a literal",
			input: `true`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Op != OpLit || n.Lit != LitBool || !n.Bool {
					t.Errorf("got op=%q lit=%d bool=%t, want true literal", n.Op, n.Lit, n.Bool)
				}
			},
		},
		{
			name:  "explicit var object",
			input: `{"var": "credit_score"}`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Op != OpVar || n.Name != "credit_score" {
					t.Errorf("got op=%q name=%q", n.Op, n.Name)
				}
			},
		},
		{
			name:  "explicit value object",
			input: `{"value": 620}`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Op != OpLit || n.Num.Cmp(big.NewRat(620, 1)) != 0 {
					t.Errorf("got op=%q num=%s", n.Op, n.Num)
				}
			},
		},
		{
			name:  "operator node with nested args",
			input: `{"op": "<=", "args": ["dti", 43]}`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Op != OpLe || len(n.Args) != 2 {
					t.Fatalf("got op=%q args=%d", n.Op, len(n.Args))
				}
				if n.Args[0].Op != OpVar || n.Args[1].Op != OpLit {
					t.Errorf("child ops = %q, %q", n.Args[0].Op, n.Args[1].Op)
				}
			},
		},
		{
			name:  "unknown operator passes parsing",
			input: `{"op": "xor", "args": ["a", "b"]}`,
			check: func(t *testing.T, n *FormulaNode) {
				if n.Op != Op("xor") {
					t.Errorf("got op=%q, want xor preserved", n.Op)
				}
			},
		},
		{
			name:    "null node rejected",
			input:   `null`,
			wantErr: true,
		},
		{
			name:    "object without op, var or value rejected",
			input:   `{"formula": 1}`,
			wantErr: true,
		},
		{
			name:    "op without args rejected",
			input:   `{"op": "and"}`,
			wantErr: true,
		},
		{
			name:    "array rejected",
			input:   `[1, 2]`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var n FormulaNode
			err := json.Unmarshal([]byte(tc.input), &n)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.check(t, &n)
		})
	}
}

func TestFormulaNode_Variables(t *testing.T) {
	var n FormulaNode
	input := `{"op": "and", "args": [
		{"op": "<=", "args": ["dti", 43]},
		{"op": ">=", "args": ["credit_score", 620]},
		{"op": "<", "args": ["dti", 100]}
	]}`
	if err := json.Unmarshal([]byte(input), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := n.Variables(make(map[string]bool), nil)
	want := []string{"dti", "credit_score"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variable[%d] = %q, want %q (first-reference order)", i, got[i], want[i])
		}
	}
}

func TestFormulaNode_String(t *testing.T) {
	var n FormulaNode
	if err := json.Unmarshal([]byte(`{"op": "<=", "args": ["dti", 43]}`), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := n.String(); got != "(dti <= 43)" {
		t.Errorf("String() = %q, want %q", got, "(dti <= 43)")
	}

	var not FormulaNode
	if err := json.Unmarshal([]byte(`{"op": "not", "args": ["has_guarantee"]}`), &not); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := not.String(); got != "!has_guarantee" {
		t.Errorf("String() = %q, want %q", got, "!has_guarantee")
	}
}

func TestFormatRat(t *testing.T) {
	tests := []struct {
		in   *big.Rat
		want string
	}{
		{big.NewRat(43, 1), "43"},
		{big.NewRat(350000, 1), "350000"},
		{big.NewRat(1, 2), "0.5"},
		{big.NewRat(-7, 4), "-1.75"},
		{nil, "0"},
	}
	for _, tc := range tests {
		if got := FormatRat(tc.in); got != tc.want {
			t.Errorf("FormatRat(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
