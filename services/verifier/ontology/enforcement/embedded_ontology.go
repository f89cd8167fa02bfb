// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
This file bridges the build system and the runtime logic. It uses the Go embed
package to bake the default compliance ontology directly into the compiled
binary, so a deployment with no object store configured (or no network) still
verifies against a known-good rule set that travels with the executable.
*/

package enforcement

import (
	_ "embed"
)

// MortgageComplianceV1 holds the raw bytes of the default U.S. mortgage
// compliance ontology, populated at compile time via the embed directive.
//
// Usage:
//
//	ont, err := ontology.Parse(enforcement.MortgageComplianceV1)
//
//go:embed mortgage_compliance_v1.json
var MortgageComplianceV1 []byte

// Embedded maps ontology name to the raw document for every rule set shipped
// in the binary. Read-only after init.
var Embedded = map[string][]byte{
	"mortgage-compliance-v1": MortgageComplianceV1,
}
