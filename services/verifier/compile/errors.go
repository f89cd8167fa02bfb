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

import "errors"

// Sentinel compile errors. All of them indicate a malformed constraint;
// compilation is all-or-nothing per constraint, so any of these aborts the
// whole constraint, never producing a partial expression.
var (
	// ErrUnresolvedVariable indicates a formula references a variable the
	// mapping does not bind.
	ErrUnresolvedVariable = errors.New("unresolved variable")

	// ErrTypeMismatch indicates an operator was applied to operands of the
	// wrong or inconsistent types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedOperator indicates an operator outside the formula
	// grammar, or one used with the wrong arity.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrDivisionByZero indicates a division whose divisor is provably
	// zero. All operands are bound constants, so every divisor is
	// provable at compile time.
	ErrDivisionByZero = errors.New("division by zero")
)
