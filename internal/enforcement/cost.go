// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package enforcement

import (
	"sync"

	"neurorail/internal/governor/manifest"
	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
)

// CostAccumulator tracks one attempt's resource consumption.
type CostAccumulator struct {
	LLMTokensUsed       int64
	LLMPromptTokens     int64
	LLMCompletionTokens int64
	APICallsMade        int64
	CostCreditsUsed     float64
}

func (a *CostAccumulator) addLLMTokens(prompt, completion int64) {
	a.LLMPromptTokens += prompt
	a.LLMCompletionTokens += completion
	a.LLMTokensUsed = a.LLMPromptTokens + a.LLMCompletionTokens
}

func (a *CostAccumulator) addAPICall(costCredits float64) {
	a.APICallsMade++
	a.CostCreditsUsed += costCredits
}

// CostTracker tracks and enforces per-attempt cost budgets. Budget violation
// is checked the instant a tracked quantity crosses its limit and is not
// retriable: an overbudget attempt cannot be "tried again within budget".
type CostTracker struct {
	mu               sync.Mutex
	accumulators     map[string]*CostAccumulator
	totalViolations  int64
	tokenViolations  int64
	costViolations   int64
}

// NewCostTracker builds an empty CostTracker.
func NewCostTracker() *CostTracker {
	return &CostTracker{accumulators: make(map[string]*CostAccumulator)}
}

// InitAccumulator ensures attemptID has an accumulator, creating an empty
// one if this is the first call for it.
func (t *CostTracker) InitAccumulator(attemptID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initLocked(attemptID)
}

func (t *CostTracker) initLocked(attemptID string) *CostAccumulator {
	a, ok := t.accumulators[attemptID]
	if !ok {
		a = &CostAccumulator{}
		t.accumulators[attemptID] = a
	}
	return a
}

// TrackLLMTokens records prompt+completion token usage for attemptID and
// returns BUDGET_COST_EXCEEDED the instant budget.MaxLLMTokens is crossed.
func (t *CostTracker) TrackLLMTokens(attemptID string, promptTokens, completionTokens int64, budget manifest.Budget) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.initLocked(attemptID)
	a.addLLMTokens(promptTokens, completionTokens)

	if budget.MaxLLMTokens != nil && a.LLMTokensUsed > *budget.MaxLLMTokens {
		t.totalViolations++
		t.tokenViolations++
		metrics.CostViolationsTotal.WithLabelValues("llm_tokens").Inc()
		return nrerrors.New(nrerrors.BudgetCostExceeded, "LLM token budget exceeded", map[string]any{
			"attempt_id":     attemptID,
			"tokens_used":    a.LLMTokensUsed,
			"max_llm_tokens": *budget.MaxLLMTokens,
			"cost_type":      "llm_tokens",
		})
	}
	return nil
}

// TrackAPICall records an API call and its cost credits for attemptID and
// returns BUDGET_COST_EXCEEDED the instant budget.MaxCostCredits is crossed.
func (t *CostTracker) TrackAPICall(attemptID string, costCredits float64, budget manifest.Budget) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.initLocked(attemptID)
	a.addAPICall(costCredits)

	if budget.MaxCostCredits != nil && a.CostCreditsUsed > *budget.MaxCostCredits {
		t.totalViolations++
		t.costViolations++
		metrics.CostViolationsTotal.WithLabelValues("cost_credits").Inc()
		return nrerrors.New(nrerrors.BudgetCostExceeded, "cost credit budget exceeded", map[string]any{
			"attempt_id":       attemptID,
			"credits_used":     a.CostCreditsUsed,
			"max_cost_credits": *budget.MaxCostCredits,
			"cost_type":        "cost_credits",
		})
	}
	return nil
}

// IsOverBudget is a non-blocking check of whether attemptID already exceeds
// budget, without raising.
func (t *CostTracker) IsOverBudget(attemptID string, budget manifest.Budget) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.accumulators[attemptID]
	if !ok {
		return false
	}
	if budget.MaxLLMTokens != nil && a.LLMTokensUsed > *budget.MaxLLMTokens {
		return true
	}
	if budget.MaxCostCredits != nil && a.CostCreditsUsed > *budget.MaxCostCredits {
		return true
	}
	return false
}

// GetAccumulator returns a copy of attemptID's accumulator, if any.
func (t *CostTracker) GetAccumulator(attemptID string) (CostAccumulator, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.accumulators[attemptID]
	if !ok {
		return CostAccumulator{}, false
	}
	return *a, true
}

// FinalizeAccumulator removes and returns attemptID's final accumulator.
// Accumulators are per-attempt; a Track call for attemptID after removal
// starts a new, empty accumulator.
func (t *CostTracker) FinalizeAccumulator(attemptID string) (CostAccumulator, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.accumulators[attemptID]
	if !ok {
		return CostAccumulator{}, false
	}
	delete(t.accumulators, attemptID)
	return *a, true
}

// CostMetrics is the tracker's own violation counters.
type CostMetrics struct {
	TotalViolations int64
	TokenViolations int64
	CostViolations  int64
}

// GetMetrics snapshots the tracker's violation counters.
func (t *CostTracker) GetMetrics() CostMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CostMetrics{
		TotalViolations: t.totalViolations,
		TokenViolations: t.tokenViolations,
		CostViolations:  t.costViolations,
	}
}
