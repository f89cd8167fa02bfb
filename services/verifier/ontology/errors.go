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

import "errors"

// Sentinel errors for ontology loading.
var (
	// ErrOntologyNotFound indicates no store knows the requested name.
	ErrOntologyNotFound = errors.New("ontology not found")

	// ErrMalformedOntology indicates the document failed structural
	// validation. Configuration error, surfaced before any constraint
	// is evaluated.
	ErrMalformedOntology = errors.New("malformed ontology")
)
