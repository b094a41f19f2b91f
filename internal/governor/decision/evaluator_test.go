// Copyright 2026 fanjia1024
// Tests for the decision evaluator

package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurorail/internal/governor/manifest"
)

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func testManifest() manifest.Manifest {
	return manifest.Manifest{
		ManifestID: "family-1",
		Version:    "v1",
		BudgetDefaults: manifest.Budget{
			TimeoutMS:  int64p(30000),
			MaxRetries: intp(3),
		},
		RiskClasses: map[string]manifest.RiskClass{
			"high": {BudgetMultiplier: 2.0, RecoveryStrategy: manifest.RecoveryManualConfirm},
			"low":  {BudgetMultiplier: 1.0, RecoveryStrategy: manifest.RecoveryRetry},
		},
		JobOverrides: map[string]manifest.Budget{
			"critical_job": {TimeoutMS: int64p(120000)},
		},
		Rules: []manifest.ManifestRule{
			{
				RuleID:   "rail-prod-external",
				Priority: 10,
				Enabled:  true,
				Mode:     manifest.ModeRail,
				When: manifest.RuleCondition{
					All: []manifest.RuleCondition{
						{Fields: map[string]any{"environment": "production"}},
						{Fields: map[string]any{"external_dependency": true}},
					},
				},
				Reason: "production jobs touching external systems are railed",
			},
			{
				RuleID:   "personal-data-manual",
				Priority: 5,
				Enabled:  true,
				Mode:     manifest.ModeRail,
				When: manifest.RuleCondition{
					Fields: map[string]any{"uses_personal_data": true},
				},
				RecoveryStrategy: manifest.RecoveryManualConfirm,
				Reason:           "personal data processing always requires manual confirm",
			},
			{
				RuleID:   "disabled-rule",
				Priority: 1,
				Enabled:  false,
				Mode:     manifest.ModeDirect,
				When:     manifest.RuleCondition{Fields: map[string]any{"job_type": "anything"}},
			},
		},
	}
}

func TestEvaluate_NoMatchUsesDefaults(t *testing.T) {
	e := NewEvaluator(testManifest(), nil)
	d, err := e.Evaluate(DecisionContext{JobType: "benign_job", Environment: "staging"}, false)
	require.NoError(t, err)
	assert.Equal(t, manifest.ModeDirect, d.Mode)
	assert.Equal(t, manifest.RecoveryRetry, d.RecoveryStrategy)
	assert.Empty(t, d.TriggeredRules)
	assert.Equal(t, "low", d.HealthImpact)
}

func TestEvaluate_PriorityOrderFirstMatchWins(t *testing.T) {
	e := NewEvaluator(testManifest(), nil)
	d, err := e.Evaluate(DecisionContext{
		JobType:           "export_job",
		Environment:       "production",
		ExternalDependency: true,
		UsesPersonalData:  true,
	}, false)
	require.NoError(t, err)
	// personal-data-manual has priority 5 < rail-prod-external's 10, so it wins.
	assert.Equal(t, []string{"personal-data-manual"}, d.TriggeredRules)
	assert.Equal(t, manifest.RecoveryManualConfirm, d.RecoveryStrategy)
	assert.Equal(t, "high", d.HealthImpact)
	assert.True(t, d.ImmuneAlertRequired)
}

func TestEvaluate_DisabledRuleNeverMatches(t *testing.T) {
	e := NewEvaluator(testManifest(), nil)
	d, err := e.Evaluate(DecisionContext{JobType: "anything"}, false)
	require.NoError(t, err)
	assert.Empty(t, d.TriggeredRules)
}

func TestResolveBudget_JobOverrideBeatsRule(t *testing.T) {
	e := NewEvaluator(testManifest(), nil)
	d, err := e.Evaluate(DecisionContext{
		JobType:           "critical_job",
		Environment:       "production",
		ExternalDependency: true,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "job_override", d.BudgetResolution.Source)
	require.NotNil(t, d.BudgetResolution.Budget.TimeoutMS)
	assert.Equal(t, int64(120000), *d.BudgetResolution.Budget.TimeoutMS)
}

func TestResolveBudget_RiskMultiplierAppliedNotToRetries(t *testing.T) {
	e := NewEvaluator(testManifest(), nil)
	d, err := e.Evaluate(DecisionContext{JobType: "benign_job", RiskClass: "high"}, false)
	require.NoError(t, err)
	require.NotNil(t, d.BudgetResolution.MultiplierApplied)
	assert.Equal(t, 2.0, *d.BudgetResolution.MultiplierApplied)
	require.NotNil(t, d.BudgetResolution.Budget.TimeoutMS)
	assert.Equal(t, int64(60000), *d.BudgetResolution.Budget.TimeoutMS)
	require.NotNil(t, d.BudgetResolution.Budget.MaxRetries)
	assert.Equal(t, 3, *d.BudgetResolution.Budget.MaxRetries)
}

func TestEvaluate_ImmuneAlertOnRailProduction(t *testing.T) {
	e := NewEvaluator(testManifest(), nil)
	d, err := e.Evaluate(DecisionContext{
		JobType:           "sync_job",
		Environment:       "production",
		ExternalDependency: true,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, manifest.ModeRail, d.Mode)
	assert.True(t, d.ImmuneAlertRequired)
}

func TestShadowCompare_DetectsDivergence(t *testing.T) {
	activeManifest := testManifest()
	shadowManifest := testManifest()
	shadowManifest.Rules[1].RecoveryStrategy = manifest.RecoveryFallback

	active := NewEvaluator(activeManifest, nil)
	shadow := NewEvaluator(shadowManifest, nil)

	ctx := DecisionContext{JobType: "export_job", UsesPersonalData: true}
	_, _, diverged, err := ShadowCompare(active, shadow, ctx)
	require.NoError(t, err)
	assert.True(t, diverged)
}

func TestShadowCompare_NoDivergence(t *testing.T) {
	active := NewEvaluator(testManifest(), nil)
	shadow := NewEvaluator(testManifest(), nil)

	ctx := DecisionContext{JobType: "benign_job"}
	_, _, diverged, err := ShadowCompare(active, shadow, ctx)
	require.NoError(t, err)
	assert.False(t, diverged)
}
