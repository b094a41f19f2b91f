// Copyright 2026 fanjia1024
// Tests for the cost tracker

package enforcement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurorail/internal/governor/manifest"
	nrerrors "neurorail/pkg/errors"
)

func tokensP(v int64) *int64    { return &v }
func creditsP(v float64) *float64 { return &v }

func TestCostTracker_TrackLLMTokensUnderBudget(t *testing.T) {
	tr := NewCostTracker()
	budget := manifest.Budget{MaxLLMTokens: tokensP(1000)}

	err := tr.TrackLLMTokens("a1", 300, 200, budget)
	require.NoError(t, err)

	acc, ok := tr.GetAccumulator("a1")
	require.True(t, ok)
	assert.Equal(t, int64(500), acc.LLMTokensUsed)
}

func TestCostTracker_TrackLLMTokensOverBudget(t *testing.T) {
	tr := NewCostTracker()
	budget := manifest.Budget{MaxLLMTokens: tokensP(100)}

	err := tr.TrackLLMTokens("a1", 80, 80, budget)
	require.Error(t, err)
	assert.True(t, nrerrors.Is(err, nrerrors.BudgetCostExceeded))
	assert.Equal(t, int64(1), tr.GetMetrics().TokenViolations)
}

func TestCostTracker_TrackAPICallOverBudget(t *testing.T) {
	tr := NewCostTracker()
	budget := manifest.Budget{MaxCostCredits: creditsP(10.0)}

	err := tr.TrackAPICall("a1", 5.0, budget)
	require.NoError(t, err)
	err = tr.TrackAPICall("a1", 6.0, budget)
	require.Error(t, err)
	assert.True(t, nrerrors.Is(err, nrerrors.BudgetCostExceeded))
}

func TestCostTracker_IsOverBudget(t *testing.T) {
	tr := NewCostTracker()
	budget := manifest.Budget{MaxLLMTokens: tokensP(10)}
	assert.False(t, tr.IsOverBudget("a1", budget))

	_ = tr.TrackLLMTokens("a1", 20, 0, budget)
	assert.True(t, tr.IsOverBudget("a1", budget))
}

func TestCostTracker_FinalizeAccumulatorRemoves(t *testing.T) {
	tr := NewCostTracker()
	tr.InitAccumulator("a1")
	_, ok := tr.FinalizeAccumulator("a1")
	require.True(t, ok)
	_, ok = tr.GetAccumulator("a1")
	assert.False(t, ok)
}
