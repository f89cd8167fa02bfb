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
	"fmt"
	"math/big"
	"strings"
)

// Op identifies a formula operator. The operator vocabulary matches the
// external ontology file format exactly; anything outside this set is kept
// as-is at parse time and rejected by the compiler.
type Op string

// Operator vocabulary of the ontology formula grammar.
const (
	OpAnd     Op = "and"
	OpOr      Op = "or"
	OpNot     Op = "not"
	OpImplies Op = "implies"
	OpIte     Op = "ite"

	OpEq Op = "=="
	OpLe Op = "<="
	OpGe Op = ">="
	OpLt Op = "<"
	OpGt Op = ">"

	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"

	OpMin Op = "min"
	OpMax Op = "max"

	// OpVar and OpLit are leaf tags produced by the parser, never written
	// in ontology files as operator names.
	OpVar Op = "var"
	OpLit Op = "lit"
)

// LitKind discriminates literal leaf payloads.
type LitKind int

const (
	// LitNone marks a non-literal node.
	LitNone LitKind = iota

	// LitBool marks a boolean literal.
	LitBool

	// LitNum marks a numeric literal held as an exact rational.
	LitNum
)

// FormulaNode is one node of a constraint formula tree.
//
// A tree is acyclic and owned exclusively by the Constraint that contains
// it. Interior nodes carry Op and Args; leaves are either variable
// references (Op == OpVar, Name set) or literals (Op == OpLit, Lit plus
// Bool or Num set). Numeric literals are exact rationals so threshold
// comparisons never suffer float rounding.
type FormulaNode struct {
	Op   Op
	Args []*FormulaNode

	// Name is the referenced variable name when Op == OpVar.
	Name string

	// Lit, Bool and Num describe the literal payload when Op == OpLit.
	Lit  LitKind
	Bool bool
	Num  *big.Rat
}

// UnmarshalJSON parses the external formula grammar.
//
// Accepted node shapes:
//
//	{"op": "<operator>", "args": [node, ...]}
//	{"var": "name"}          - explicit variable reference
//	{"value": <literal>}     - explicit literal
//	"name"                   - bare string, variable reference
//	42, 43.5, true, false    - bare literal
//
// Structural problems (wrong JSON types, missing fields) are reported here
// and surface as a malformed ontology. Operator validity and arity are the
// compiler's concern, so unknown operators pass through untouched.
func (n *FormulaNode) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	return n.fromRaw(raw)
}

func (n *FormulaNode) fromRaw(raw any) error {
	switch v := raw.(type) {
	case string:
		n.Op = OpVar
		n.Name = v
		return nil

	case bool:
		n.Op = OpLit
		n.Lit = LitBool
		n.Bool = v
		return nil

	case json.Number:
		return n.setNumber(v.String())

	case float64:
		// Reached when a raw tree is built programmatically rather than
		// decoded with UseNumber.
		return n.setNumber(fmt.Sprintf("%v", v))

	case map[string]any:
		if op, ok := v["op"]; ok {
			opName, ok := op.(string)
			if !ok {
				return fmt.Errorf("formula node: \"op\" must be a string, got %T", op)
			}
			rawArgs, ok := v["args"].([]any)
			if !ok {
				return fmt.Errorf("formula node %q: missing or invalid \"args\" array", opName)
			}
			n.Op = Op(opName)
			n.Args = make([]*FormulaNode, len(rawArgs))
			for i, rawArg := range rawArgs {
				child := &FormulaNode{}
				if err := child.fromRaw(rawArg); err != nil {
					return err
				}
				n.Args[i] = child
			}
			return nil
		}
		if name, ok := v["var"]; ok {
			s, ok := name.(string)
			if !ok || s == "" {
				return fmt.Errorf("formula node: \"var\" must be a non-empty string")
			}
			n.Op = OpVar
			n.Name = s
			return nil
		}
		if lit, ok := v["value"]; ok {
			return n.fromRaw(lit)
		}
		return fmt.Errorf("formula node: object needs one of \"op\", \"var\", \"value\"")

	case nil:
		return fmt.Errorf("formula node: null is not a valid node")

	default:
		return fmt.Errorf("formula node: unsupported JSON value %T", raw)
	}
}

func (n *FormulaNode) setNumber(s string) error {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return fmt.Errorf("formula node: invalid numeric literal %q", s)
	}
	n.Op = OpLit
	n.Lit = LitNum
	n.Num = r
	return nil
}

// IsZero reports whether the node is empty, i.e. the constraint carried no
// formula at all.
func (n *FormulaNode) IsZero() bool {
	return n == nil || (n.Op == "" && len(n.Args) == 0 && n.Name == "" && n.Lit == LitNone)
}

// Variables appends the names of every variable referenced under the node,
// in first-reference order, skipping names already present in seen.
func (n *FormulaNode) Variables(seen map[string]bool, out []string) []string {
	if n == nil {
		return out
	}
	if n.Op == OpVar {
		if !seen[n.Name] {
			seen[n.Name] = true
			out = append(out, n.Name)
		}
		return out
	}
	for _, arg := range n.Args {
		out = arg.Variables(seen, out)
	}
	return out
}

// String renders the node in a compact infix form used for atom names in
// counterexamples and for log lines, e.g. "(dti <= 43)".
func (n *FormulaNode) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Op {
	case OpVar:
		return n.Name
	case OpLit:
		if n.Lit == LitBool {
			return fmt.Sprintf("%t", n.Bool)
		}
		return FormatRat(n.Num)
	case OpNot:
		if len(n.Args) == 1 {
			return "!" + n.Args[0].String()
		}
	case OpAnd, OpOr, OpImplies, OpEq, OpLe, OpGe, OpLt, OpGt, OpAdd, OpSub, OpMul, OpDiv:
		if len(n.Args) >= 2 {
			parts := make([]string, len(n.Args))
			for i, arg := range n.Args {
				parts[i] = arg.String()
			}
			return "(" + strings.Join(parts, " "+string(n.Op)+" ") + ")"
		}
	case OpMin, OpMax, OpIte:
		parts := make([]string, len(n.Args))
		for i, arg := range n.Args {
			parts[i] = arg.String()
		}
		return string(n.Op) + "(" + strings.Join(parts, ", ") + ")"
	}
	return string(n.Op) + "(?)"
}

// FormatRat renders an exact rational the way the original ontology files
// write numbers: integers without a decimal point, everything else as a
// shortest-form decimal.
func FormatRat(r *big.Rat) string {
	if r == nil {
		return "0"
	}
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(6)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
