// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aare-ai/aare-core/services/verifier/ontology"
	"github.com/aare-ai/aare-core/services/verifier/solver"
)

func newTestService() *Service {
	return NewService(ServiceConfig{
		Loader: ontology.NewLoader(ontology.EmbeddedStore{}),
	})
}

func TestVerify_CompliantApproval(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(),
		"Based on your DTI of 35% and FICO score of 720, you are approved for a $350,000 mortgage.", "")
	require.NoError(t, err)

	assert.True(t, resp.Verified)
	assert.Empty(t, resp.Violations)
	assert.Empty(t, resp.Warnings)

	assert.Equal(t, json.Number("35"), resp.ParsedData["dti"])
	assert.Equal(t, json.Number("720"), resp.ParsedData["credit_score"])
	assert.Equal(t, json.Number("350000"), resp.ParsedData["loan_amount"])
	_, hasGuarantee := resp.ParsedData["has_guarantee"]
	assert.False(t, hasGuarantee, "silent booleans are not echoed in parsed_data")

	assert.Equal(t, "mortgage-compliance-v1", resp.Ontology.Name)
	assert.Equal(t, 5, resp.Ontology.ConstraintsChecked)
	assert.Equal(t, "negation-satisfiability", resp.Proof.Method)
	assert.Equal(t, "1.0", resp.Proof.Version)
	assert.Equal(t, solver.Name, resp.Solver)
	assert.NotEmpty(t, resp.VerificationID)
	assert.NotEmpty(t, resp.Timestamp)
	assert.GreaterOrEqual(t, resp.ExecutionTimeMs, int64(0))
}

func TestVerify_DTIViolation(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(),
		"With a DTI of 48% and FICO of 700, you are approved for $300,000.", "")
	require.NoError(t, err)

	assert.False(t, resp.Verified)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "DTI of 48% exceeds the 43% qualified mortgage limit", resp.Violations[0])
}

func TestVerify_MissingVariableWarns(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(),
		"Your DTI of 35% qualifies you for a $350,000 mortgage.", "")
	require.NoError(t, err)

	// The defaulted credit score (680) still satisfies every constraint,
	// so the run verifies but discloses the defaulting.
	assert.True(t, resp.Verified)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "Variables defaulted (not found in input): ['credit_score']", resp.Warnings[0])

	_, present := resp.ParsedData["credit_score"]
	assert.False(t, present, "defaulted values are not echoed in parsed_data")
}

func TestVerify_GuaranteeLanguage(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(),
		"Great news! You have guaranteed approval on this loan, no matter what.", "")
	require.NoError(t, err)

	assert.False(t, resp.Verified)
	assert.Contains(t, resp.Violations, "Cannot guarantee approval")
	assert.Equal(t, true, resp.ParsedData["has_guarantee"])
}

func TestVerify_DenialWithoutReason(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(),
		"Unfortunately your application was denied.", "")
	require.NoError(t, err)

	assert.False(t, resp.Verified)
	assert.Contains(t, resp.Violations, "Adverse action must disclose a specific denial reason")

	resp, err = svc.Verify(context.Background(),
		"Your application was denied due to insufficient documented income.", "")
	require.NoError(t, err)
	assert.NotContains(t, resp.Violations, "Adverse action must disclose a specific denial reason")
}

func TestVerify_BoundaryDTI(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(),
		"Your DTI of 43% and FICO of 705 qualify you for $400,000.", "")
	require.NoError(t, err)

	assert.True(t, resp.Verified, "DTI exactly at the limit satisfies a non-strict bound")
	assert.Empty(t, resp.Violations)
}

func TestVerify_WarningSeverityConstraint(t *testing.T) {
	svc := newTestService()

	// Above the conforming loan limit trips a warning-severity rule: the
	// run is not verified, but the finding lands in warnings.
	resp, err := svc.Verify(context.Background(),
		"DTI of 35% and FICO of 720, approved for $800,000.", "")
	require.NoError(t, err)

	assert.False(t, resp.Verified)
	assert.Empty(t, resp.Violations)
	assert.Contains(t, resp.Warnings, "Loan amount $800000 exceeds the baseline conforming limit")
}

func TestVerify_UnknownOntology(t *testing.T) {
	svc := newTestService()

	_, err := svc.Verify(context.Background(), "any text", "no-such-ontology")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ontology.ErrOntologyNotFound))
}

func TestVerify_DefaultOntologyName(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(), "DTI of 35%, FICO 720, $100,000.", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOntology, resp.Ontology.Name)
}

func TestListOntologies(t *testing.T) {
	svc := newTestService()

	names := svc.ListOntologies(context.Background())
	assert.Contains(t, names, "mortgage-compliance-v1")
}

// memStore serves in-memory ontology documents for tests.
type memStore map[string][]byte

func (s memStore) Fetch(_ context.Context, name string) ([]byte, error) {
	data, ok := s[name]
	if !ok {
		return nil, ontology.ErrOntologyNotFound
	}
	return data, nil
}

func (s memStore) List(context.Context) ([]string, error) {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names, nil
}

func TestVerify_UncoveredVariableSurfacesAsWarning(t *testing.T) {
	// The constraint references a variable with no extraction recipe, so
	// it cannot compile against any input; the run must degrade to an
	// unverified warning, not fail the request.
	doc := `{"name": "gap-rules", "version": "1.0", "constraints": [
		{"id": "uncovered_rule",
		 "formula": {"op": "<=", "args": ["uncovered", 1]},
		 "severity": "violation",
		 "message": "never rendered",
		 "variables": [{"name": "uncovered", "type": "real"}]}
	]}`
	svc := NewService(ServiceConfig{
		Loader: ontology.NewLoader(memStore{"gap-rules": []byte(doc)}),
	})

	resp, err := svc.Verify(context.Background(), "any text", "gap-rules")
	require.NoError(t, err)

	assert.False(t, resp.Verified)
	assert.Empty(t, resp.Violations)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "Constraint 'uncovered_rule' could not be verified:")
	assert.Contains(t, resp.Warnings[0], "unresolved variable")
}

func TestVerify_NonIntegralDefaultAtThreshold(t *testing.T) {
	// The defaulted value must compare exactly equal to the non-integral
	// threshold; a float64 approximation of 43.3 would fail >= 43.3.
	doc := `{"name": "threshold-rules", "version": "1.0", "constraints": [
		{"id": "ratio_floor",
		 "formula": {"op": ">=", "args": ["ratio", 43.3]},
		 "severity": "violation",
		 "message": "ratio {ratio} below 43.3",
		 "variables": [{"name": "ratio", "type": "real"}]}],
		"extractors": {"ratio": {"type": "real", "pattern": "ratio of (\\d+(?:\\.\\d+)?)", "default": 43.3}}}`
	svc := NewService(ServiceConfig{
		Loader: ontology.NewLoader(memStore{"threshold-rules": []byte(doc)}),
	})

	resp, err := svc.Verify(context.Background(), "no ratio in this text", "threshold-rules")
	require.NoError(t, err)

	assert.True(t, resp.Verified, "a value defaulted to the threshold satisfies a non-strict bound")
	assert.Empty(t, resp.Violations)
	assert.Contains(t, resp.Warnings, "Variables defaulted (not found in input): ['ratio']")
}

func TestRenderMessage(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Verify(context.Background(),
		"Skip escrow for now. Your FICO of 580 was noted; DTI of 30%, approved for $200,000.", "")
	require.NoError(t, err)

	assert.False(t, resp.Verified)
	assert.Contains(t, resp.Violations, "Cannot waive escrow with FICO 580 below 620")
}
