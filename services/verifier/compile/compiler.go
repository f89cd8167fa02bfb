// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compile lowers constraint formulas into solver-ready expressions.
//
// A formula tree plus a variable mapping compiles into a propositional
// skeleton over named atoms. Every numeric comparison is discharged at
// compile time with exact rational arithmetic (the variables are bound
// constants, not free solver variables) and becomes an atom whose truth
// value is pinned; boolean variables become atoms pinned to their bound
// value. The solver then decides satisfiability of the skeleton's negation
// under those pins, and its model over the atoms is the counterexample.
//
// Exact arithmetic matters at thresholds: a DTI extracted as exactly 43
// compares equal to the literal 43, with no float rounding to push it over.
//
// Compilation is all-or-nothing per constraint and keeps no global state.
package compile

import (
	"fmt"
	"math/big"

	"github.com/aare-ai/aare-core/services/verifier/extract"
	"github.com/aare-ai/aare-core/services/verifier/ontology"
	"github.com/crillab/gophersat/bf"
)

// Atom pins the compile-time truth of one closed comparison or boolean
// binding. Name doubles as the solver variable name, rendered from the
// source expression ("(dti <= 43)") so counterexamples read naturally.
type Atom struct {
	Name  string
	Truth bool
}

// Compiled is the solver-theory form of one constraint formula. It exists
// only for the duration of one verification pass and is never persisted.
type Compiled struct {
	// Skeleton is the propositional structure over the atom variables.
	Skeleton bf.Formula

	// Atoms lists every atom the skeleton mentions, in first-use order,
	// each with its pinned truth value.
	Atoms []Atom
}

// Pins returns the conjunction fixing every atom to its compile-time truth
// value. Asserted alongside the negated skeleton so the solver reasons over
// the actual bindings rather than free atoms.
func (c *Compiled) Pins() bf.Formula {
	if len(c.Atoms) == 0 {
		return bf.True
	}
	pins := make([]bf.Formula, len(c.Atoms))
	for i, atom := range c.Atoms {
		v := bf.Var(atom.Name)
		if atom.Truth {
			pins[i] = v
		} else {
			pins[i] = bf.Not(v)
		}
	}
	return bf.And(pins...)
}

// Compile lowers one formula against a variable mapping.
//
// Fails with ErrUnresolvedVariable, ErrTypeMismatch,
// ErrUnsupportedOperator or ErrDivisionByZero; on any failure nothing is
// returned; there is no partially compiled expression.
func Compile(node *ontology.FormulaNode, mapping extract.Mapping) (*Compiled, error) {
	c := &compiler{mapping: mapping, seen: make(map[string]bool)}
	skeleton, err := c.boolExpr(node)
	if err != nil {
		return nil, err
	}
	return &Compiled{Skeleton: skeleton, Atoms: c.atoms}, nil
}

// exprKind is the value category a subtree produces.
type exprKind int

const (
	kindBool exprKind = iota
	kindNum
)

type compiler struct {
	mapping extract.Mapping
	atoms   []Atom
	seen    map[string]bool
}

// addAtom registers an atom, deduplicating by name. A closed expression
// always evaluates to the same truth, so duplicates are consistent.
func (c *compiler) addAtom(name string, truth bool) bf.Formula {
	if !c.seen[name] {
		c.seen[name] = true
		c.atoms = append(c.atoms, Atom{Name: name, Truth: truth})
	}
	return bf.Var(name)
}

// boolExpr lowers a boolean-typed subtree to a propositional formula.
func (c *compiler) boolExpr(n *ontology.FormulaNode) (bf.Formula, error) {
	switch n.Op {
	case ontology.OpAnd, ontology.OpOr:
		if len(n.Args) < 2 {
			return nil, fmt.Errorf("%w: %q needs at least two operands", ErrUnsupportedOperator, n.Op)
		}
		subs := make([]bf.Formula, len(n.Args))
		for i, arg := range n.Args {
			sub, err := c.boolExpr(arg)
			if err != nil {
				return nil, err
			}
			subs[i] = sub
		}
		if n.Op == ontology.OpAnd {
			return bf.And(subs...), nil
		}
		return bf.Or(subs...), nil

	case ontology.OpNot:
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("%w: %q needs exactly one operand", ErrUnsupportedOperator, n.Op)
		}
		sub, err := c.boolExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		return bf.Not(sub), nil

	case ontology.OpImplies:
		if len(n.Args) != 2 {
			return nil, fmt.Errorf("%w: %q needs exactly two operands", ErrUnsupportedOperator, n.Op)
		}
		lhs, err := c.boolExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		rhs, err := c.boolExpr(n.Args[1])
		if err != nil {
			return nil, err
		}
		return bf.Implies(lhs, rhs), nil

	case ontology.OpIte:
		if len(n.Args) != 3 {
			return nil, fmt.Errorf("%w: %q needs exactly three operands", ErrUnsupportedOperator, n.Op)
		}
		thenKind, err := c.kindOf(n.Args[1])
		if err != nil {
			return nil, err
		}
		elseKind, err := c.kindOf(n.Args[2])
		if err != nil {
			return nil, err
		}
		if thenKind != elseKind {
			return nil, fmt.Errorf("%w: ite branches %s and %s do not unify",
				ErrTypeMismatch, n.Args[1], n.Args[2])
		}
		if thenKind == kindNum {
			return nil, fmt.Errorf("%w: numeric ite %s used as a boolean expression",
				ErrTypeMismatch, n)
		}
		cond, err := c.boolExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		thenF, err := c.boolExpr(n.Args[1])
		if err != nil {
			return nil, err
		}
		elseF, err := c.boolExpr(n.Args[2])
		if err != nil {
			return nil, err
		}
		return bf.Or(bf.And(cond, thenF), bf.And(bf.Not(cond), elseF)), nil

	case ontology.OpEq:
		if len(n.Args) != 2 {
			return nil, fmt.Errorf("%w: %q needs exactly two operands", ErrUnsupportedOperator, n.Op)
		}
		lhsKind, err := c.kindOf(n.Args[0])
		if err != nil {
			return nil, err
		}
		rhsKind, err := c.kindOf(n.Args[1])
		if err != nil {
			return nil, err
		}
		if lhsKind != rhsKind {
			return nil, fmt.Errorf("%w: cannot compare %s with %s",
				ErrTypeMismatch, n.Args[0], n.Args[1])
		}
		if lhsKind == kindBool {
			lhs, err := c.boolExpr(n.Args[0])
			if err != nil {
				return nil, err
			}
			rhs, err := c.boolExpr(n.Args[1])
			if err != nil {
				return nil, err
			}
			return bf.Eq(lhs, rhs), nil
		}
		return c.compareAtom(n)

	case ontology.OpLe, ontology.OpGe, ontology.OpLt, ontology.OpGt:
		if len(n.Args) != 2 {
			return nil, fmt.Errorf("%w: %q needs exactly two operands", ErrUnsupportedOperator, n.Op)
		}
		return c.compareAtom(n)

	case ontology.OpVar:
		v, ok := c.mapping[n.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedVariable, n.Name)
		}
		if v.Type != ontology.VarBool {
			return nil, fmt.Errorf("%w: numeric variable %q used as a boolean expression",
				ErrTypeMismatch, n.Name)
		}
		return c.addAtom(n.Name, v.Bool), nil

	case ontology.OpLit:
		if n.Lit != ontology.LitBool {
			return nil, fmt.Errorf("%w: raw value %s used as a boolean expression",
				ErrTypeMismatch, n)
		}
		if n.Bool {
			return bf.True, nil
		}
		return bf.False, nil

	case ontology.OpAdd, ontology.OpSub, ontology.OpMul, ontology.OpDiv,
		ontology.OpMin, ontology.OpMax:
		return nil, fmt.Errorf("%w: numeric expression %s used as a boolean expression",
			ErrTypeMismatch, n)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
	}
}

// compareAtom discharges an ordering or numeric equality comparison with
// exact arithmetic and lowers it to a pinned atom.
func (c *compiler) compareAtom(n *ontology.FormulaNode) (bf.Formula, error) {
	lhs, err := c.numExpr(n.Args[0])
	if err != nil {
		return nil, err
	}
	rhs, err := c.numExpr(n.Args[1])
	if err != nil {
		return nil, err
	}

	cmp := lhs.Cmp(rhs)
	var truth bool
	switch n.Op {
	case ontology.OpEq:
		truth = cmp == 0
	case ontology.OpLe:
		truth = cmp <= 0
	case ontology.OpGe:
		truth = cmp >= 0
	case ontology.OpLt:
		truth = cmp < 0
	case ontology.OpGt:
		truth = cmp > 0
	}
	return c.addAtom(n.String(), truth), nil
}

// numExpr evaluates a numeric subtree to an exact rational.
func (c *compiler) numExpr(n *ontology.FormulaNode) (*big.Rat, error) {
	switch n.Op {
	case ontology.OpLit:
		if n.Lit != ontology.LitNum {
			return nil, fmt.Errorf("%w: boolean literal used as a number", ErrTypeMismatch)
		}
		return n.Num, nil

	case ontology.OpVar:
		v, ok := c.mapping[n.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedVariable, n.Name)
		}
		if v.Type == ontology.VarBool {
			return nil, fmt.Errorf("%w: boolean variable %q used as a number",
				ErrTypeMismatch, n.Name)
		}
		return v.Num, nil

	case ontology.OpAdd, ontology.OpSub, ontology.OpMul, ontology.OpDiv:
		if len(n.Args) != 2 {
			return nil, fmt.Errorf("%w: %q needs exactly two operands", ErrUnsupportedOperator, n.Op)
		}
		lhs, err := c.numExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		rhs, err := c.numExpr(n.Args[1])
		if err != nil {
			return nil, err
		}
		out := new(big.Rat)
		switch n.Op {
		case ontology.OpAdd:
			out.Add(lhs, rhs)
		case ontology.OpSub:
			out.Sub(lhs, rhs)
		case ontology.OpMul:
			out.Mul(lhs, rhs)
		case ontology.OpDiv:
			if rhs.Sign() == 0 {
				return nil, fmt.Errorf("%w: %s", ErrDivisionByZero, n)
			}
			out.Quo(lhs, rhs)
		}
		return out, nil

	case ontology.OpMin, ontology.OpMax:
		// Derived form: min(a,b) = ite(a <= b, a, b). Ties take the left
		// operand, which is indistinguishable under a total order.
		if len(n.Args) != 2 {
			return nil, fmt.Errorf("%w: %q needs exactly two operands", ErrUnsupportedOperator, n.Op)
		}
		lhs, err := c.numExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		rhs, err := c.numExpr(n.Args[1])
		if err != nil {
			return nil, err
		}
		le := lhs.Cmp(rhs) <= 0
		if (n.Op == ontology.OpMin) == le {
			return lhs, nil
		}
		return rhs, nil

	case ontology.OpIte:
		if len(n.Args) != 3 {
			return nil, fmt.Errorf("%w: %q needs exactly three operands", ErrUnsupportedOperator, n.Op)
		}
		cond, err := c.evalBool(n.Args[0])
		if err != nil {
			return nil, err
		}
		if cond {
			return c.numExpr(n.Args[1])
		}
		return c.numExpr(n.Args[2])

	case ontology.OpAnd, ontology.OpOr, ontology.OpNot, ontology.OpImplies,
		ontology.OpEq, ontology.OpLe, ontology.OpGe, ontology.OpLt, ontology.OpGt:
		return nil, fmt.Errorf("%w: boolean expression %s used as a number", ErrTypeMismatch, n)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
	}
}

// evalBool evaluates a closed boolean subtree directly. Needed for numeric
// ite conditions, where the branch taken must be known at compile time.
// All variables are bound, so every boolean subtree is closed.
func (c *compiler) evalBool(n *ontology.FormulaNode) (bool, error) {
	switch n.Op {
	case ontology.OpAnd:
		for _, arg := range n.Args {
			v, err := c.evalBool(arg)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil

	case ontology.OpOr:
		for _, arg := range n.Args {
			v, err := c.evalBool(arg)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil

	case ontology.OpNot:
		if len(n.Args) != 1 {
			return false, fmt.Errorf("%w: %q needs exactly one operand", ErrUnsupportedOperator, n.Op)
		}
		v, err := c.evalBool(n.Args[0])
		return !v, err

	case ontology.OpImplies:
		if len(n.Args) != 2 {
			return false, fmt.Errorf("%w: %q needs exactly two operands", ErrUnsupportedOperator, n.Op)
		}
		lhs, err := c.evalBool(n.Args[0])
		if err != nil {
			return false, err
		}
		if !lhs {
			return true, nil
		}
		return c.evalBool(n.Args[1])

	case ontology.OpEq, ontology.OpLe, ontology.OpGe, ontology.OpLt, ontology.OpGt:
		if len(n.Args) != 2 {
			return false, fmt.Errorf("%w: %q needs exactly two operands", ErrUnsupportedOperator, n.Op)
		}
		lhsKind, err := c.kindOf(n.Args[0])
		if err != nil {
			return false, err
		}
		if lhsKind == kindBool {
			if n.Op != ontology.OpEq {
				return false, fmt.Errorf("%w: ordering %q over booleans", ErrTypeMismatch, n.Op)
			}
			lhs, err := c.evalBool(n.Args[0])
			if err != nil {
				return false, err
			}
			rhs, err := c.evalBool(n.Args[1])
			if err != nil {
				return false, err
			}
			return lhs == rhs, nil
		}
		lhs, err := c.numExpr(n.Args[0])
		if err != nil {
			return false, err
		}
		rhs, err := c.numExpr(n.Args[1])
		if err != nil {
			return false, err
		}
		cmp := lhs.Cmp(rhs)
		switch n.Op {
		case ontology.OpEq:
			return cmp == 0, nil
		case ontology.OpLe:
			return cmp <= 0, nil
		case ontology.OpGe:
			return cmp >= 0, nil
		case ontology.OpLt:
			return cmp < 0, nil
		default:
			return cmp > 0, nil
		}

	case ontology.OpIte:
		if len(n.Args) != 3 {
			return false, fmt.Errorf("%w: %q needs exactly three operands", ErrUnsupportedOperator, n.Op)
		}
		cond, err := c.evalBool(n.Args[0])
		if err != nil {
			return false, err
		}
		if cond {
			return c.evalBool(n.Args[1])
		}
		return c.evalBool(n.Args[2])

	case ontology.OpVar:
		v, ok := c.mapping[n.Name]
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnresolvedVariable, n.Name)
		}
		if v.Type != ontology.VarBool {
			return false, fmt.Errorf("%w: numeric variable %q used as a boolean expression",
				ErrTypeMismatch, n.Name)
		}
		return v.Bool, nil

	case ontology.OpLit:
		if n.Lit != ontology.LitBool {
			return false, fmt.Errorf("%w: raw value %s used as a boolean expression",
				ErrTypeMismatch, n)
		}
		return n.Bool, nil

	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
	}
}

// kindOf infers whether a subtree is boolean- or numeric-valued without
// evaluating it.
func (c *compiler) kindOf(n *ontology.FormulaNode) (exprKind, error) {
	switch n.Op {
	case ontology.OpAnd, ontology.OpOr, ontology.OpNot, ontology.OpImplies,
		ontology.OpEq, ontology.OpLe, ontology.OpGe, ontology.OpLt, ontology.OpGt:
		return kindBool, nil
	case ontology.OpAdd, ontology.OpSub, ontology.OpMul, ontology.OpDiv,
		ontology.OpMin, ontology.OpMax:
		return kindNum, nil
	case ontology.OpIte:
		if len(n.Args) != 3 {
			return kindBool, fmt.Errorf("%w: %q needs exactly three operands", ErrUnsupportedOperator, n.Op)
		}
		return c.kindOf(n.Args[1])
	case ontology.OpVar:
		v, ok := c.mapping[n.Name]
		if !ok {
			return kindBool, fmt.Errorf("%w: %s", ErrUnresolvedVariable, n.Name)
		}
		if v.Type == ontology.VarBool {
			return kindBool, nil
		}
		return kindNum, nil
	case ontology.OpLit:
		if n.Lit == ontology.LitBool {
			return kindBool, nil
		}
		return kindNum, nil
	default:
		return kindBool, fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
	}
}
