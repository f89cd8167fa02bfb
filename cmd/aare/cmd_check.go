// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/aare-ai/aare-core/services/verifier"
	"github.com/aare-ai/aare-core/services/verifier/ontology"
)

var checkOntology string

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Verify a text file (or stdin) against an ontology locally",
	Long: `Check verifies text against the embedded ontologies without a running
server. The full verification response is printed as JSON. Exits non-zero
when the text fails verification.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkOntology, "ontology", verifier.DefaultOntology,
		"Ontology to verify against")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	text, err := readCheckInput(args)
	if err != nil {
		return err
	}

	loader := ontology.NewLoader(ontology.EmbeddedStore{})
	svc := verifier.NewService(verifier.ServiceConfig{Loader: loader})

	ctx, cancel := context.WithTimeout(context.Background(), svc.RequestTimeout())
	defer cancel()

	resp, err := svc.Verify(ctx, text, checkOntology)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !resp.Verified {
		os.Exit(1)
	}
	return nil
}

// readCheckInput takes the text from the file argument, or from stdin when
// piped. An interactive terminal with no file argument is an error rather
// than a silent hang.
func readCheckInput(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}

	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return "", fmt.Errorf("no input: pass a file argument or pipe text on stdin")
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
