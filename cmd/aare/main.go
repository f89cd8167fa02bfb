// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command aare manages the Aare verification service.
//
// Usage:
//
//	aare serve                  # start the HTTP verification server
//	aare serve -port 9090
//	aare check response.txt     # verify a file locally, no server
//	echo "DTI of 48%" | aare check -ontology mortgage-compliance-v1
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aare",
	Short: "A CLI to run and query the Aare compliance verifier",
	Long: `Aare verifies free-text LLM output against versioned compliance
ontologies using a formal constraint solver.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
