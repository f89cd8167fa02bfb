// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns free-form model output into a typed variable mapping
// using the extraction recipes an ontology declares.
//
// Extraction is deterministic: the same text and variable set always yield
// the same mapping. Misses never fail the request; the variable's declared
// default is assigned instead and a warning is accumulated, making the
// recovery path a first-class data value (Provenance) rather than implicit
// control flow.
package extract

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/aare-ai/aare-core/services/verifier/ontology"
)

// Provenance records how a variable got its value.
type Provenance string

const (
	// ProvenanceFound means the text determined the value.
	ProvenanceFound Provenance = "found"

	// ProvenanceDefaulted means extraction missed and the declared
	// default was used.
	ProvenanceDefaulted Provenance = "defaulted"
)

// Value is one typed variable binding.
//
// Numeric values are exact rationals; a DTI extracted as "43" must later
// compare equal to the literal 43, not approximately equal.
type Value struct {
	Type       ontology.VarType
	Bool       bool
	Num        *big.Rat
	Provenance Provenance

	// Explicit reports whether the value literally appeared in the text.
	// A boolean whose keywords are absent is a determination (Provenance
	// found, value false) but not explicit, and is omitted from the
	// parsed_data echoed to callers.
	Explicit bool
}

// Mapping binds variable names to values. Built per request; insertion
// order is irrelevant, names are unique keys.
type Mapping map[string]Value

// Result is a mapping plus the extraction warnings that accompanied it.
type Result struct {
	Mapping  Mapping
	Warnings []string
}

// compiledVar is one ready-to-run extraction recipe.
type compiledVar struct {
	name     string
	varType  ontology.VarType
	kind     string
	pattern  *regexp.Regexp
	keywords []string
	def      Value
}

// Extractor extracts the variable set referenced by one ontology.
//
// Thread Safety:
//
//	Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	vars []compiledVar
}

// NewExtractor compiles the extraction recipes for every variable the
// ontology's constraints reference.
//
// A referenced variable without an extractor spec is simply not covered;
// the compiler later reports it as unresolved at the constraint level. A
// spec whose pattern does not compile, or whose kind contradicts the
// declared variable type, is a malformed ontology.
func NewExtractor(ont *ontology.Ontology) (*Extractor, error) {
	types := ont.VariableTypes()
	referenced := ont.ReferencedVariables()

	vars := make([]compiledVar, 0, len(referenced))
	for _, name := range referenced {
		spec, ok := ont.Extractors[name]
		if !ok {
			continue
		}

		cv := compiledVar{name: name, kind: spec.Type, keywords: spec.Keywords}

		cv.varType = typeForKind(spec.Type)
		if declared, ok := types[name]; ok {
			if declared.Numeric() != cv.varType.Numeric() {
				return nil, fmt.Errorf("%w: variable %q declared %s but extracted as %s",
					ontology.ErrMalformedOntology, name, declared, spec.Type)
			}
			cv.varType = declared
		}

		if cv.varType != ontology.VarBool {
			if spec.Pattern == "" {
				return nil, fmt.Errorf("%w: variable %q has no extraction pattern",
					ontology.ErrMalformedOntology, name)
			}
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: variable %q pattern: %v",
					ontology.ErrMalformedOntology, name, err)
			}
			cv.pattern = re
		}

		def, err := defaultValue(cv.varType, spec.Default)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %q: %v", ontology.ErrMalformedOntology, name, err)
		}
		cv.def = def

		vars = append(vars, cv)
	}
	return &Extractor{vars: vars}, nil
}

// Extract builds the variable mapping for one request.
//
// Every covered variable receives a value: extracted when the text yields
// one, defaulted otherwise. Defaulted pattern variables are reported in a
// single aggregate warning, names in reference order.
func (e *Extractor) Extract(text string) Result {
	lower := strings.ToLower(text)

	mapping := make(Mapping, len(e.vars))
	var defaulted []string

	for _, cv := range e.vars {
		if cv.varType == ontology.VarBool {
			mapping[cv.name] = extractBool(lower, cv)
			continue
		}

		value, ok := extractNumeric(text, cv)
		if !ok {
			value = cv.def
			defaulted = append(defaulted, cv.name)
		}
		mapping[cv.name] = value
	}

	var warnings []string
	if len(defaulted) > 0 {
		quoted := make([]string, len(defaulted))
		for i, name := range defaulted {
			quoted[i] = "'" + name + "'"
		}
		warnings = append(warnings,
			fmt.Sprintf("Variables defaulted (not found in input): [%s]", strings.Join(quoted, ", ")))
	}
	return Result{Mapping: mapping, Warnings: warnings}
}

// extractBool checks keyword presence. Keyword absence is a determination
// (the text does not assert the flag), not an extraction miss, so the
// provenance stays "found" and no warning is recorded.
func extractBool(lowerText string, cv compiledVar) Value {
	for _, kw := range cv.keywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			return Value{Type: ontology.VarBool, Bool: true, Provenance: ProvenanceFound, Explicit: true}
		}
	}
	return Value{Type: ontology.VarBool, Bool: false, Provenance: ProvenanceFound}
}

func extractNumeric(text string, cv compiledVar) (Value, bool) {
	m := cv.pattern.FindStringSubmatch(text)
	if m == nil || len(m) < 2 || m[1] == "" {
		return Value{}, false
	}

	numText := strings.ReplaceAll(m[1], ",", "")
	r, ok := new(big.Rat).SetString(numText)
	if !ok {
		return Value{}, false
	}

	// Money amounts support a trailing thousands suffix captured by the
	// pattern's second group ("$350k").
	if cv.kind == "money" && len(m) > 2 && strings.EqualFold(m[2], "k") {
		r.Mul(r, big.NewRat(1000, 1))
	}

	return Value{Type: cv.varType, Num: r, Provenance: ProvenanceFound, Explicit: true}, true
}

// typeForKind maps an extractor kind to the solver-facing variable type.
func typeForKind(kind string) ontology.VarType {
	switch kind {
	case "bool", "boolean":
		return ontology.VarBool
	case "int", "score":
		return ontology.VarInt
	default: // percent, money, real
		return ontology.VarReal
	}
}

// defaultValue converts a JSON-decoded default into a typed Value. A nil
// default falls back to the type's zero value.
func defaultValue(t ontology.VarType, raw any) (Value, error) {
	v := Value{Type: t, Provenance: ProvenanceDefaulted}
	if t == ontology.VarBool {
		switch d := raw.(type) {
		case nil:
		case bool:
			v.Bool = d
		default:
			return Value{}, fmt.Errorf("default %v is not a bool", raw)
		}
		return v, nil
	}

	switch d := raw.(type) {
	case nil:
		v.Num = new(big.Rat)
	case json.Number:
		r, ok := new(big.Rat).SetString(d.String())
		if !ok {
			return Value{}, fmt.Errorf("default %q is not numeric", d)
		}
		v.Num = r
	case float64:
		// Reached only for programmatically built specs; decoded
		// documents carry json.Number and stay exact.
		v.Num = new(big.Rat).SetFloat64(d)
	case int:
		v.Num = big.NewRat(int64(d), 1)
	case string:
		r, ok := new(big.Rat).SetString(d)
		if !ok {
			return Value{}, fmt.Errorf("default %q is not numeric", d)
		}
		v.Num = r
	default:
		return Value{}, fmt.Errorf("default %v is not numeric", raw)
	}
	if v.Num == nil {
		return Value{}, fmt.Errorf("default %v is not representable", raw)
	}
	return v, nil
}
