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
	"context"

	"neurorail/internal/governor/manifest"
	nrerrors "neurorail/pkg/errors"
)

// Guards composes the four budget enforcers in their prescribed nesting
// order: Retry wraps Parallelism wraps Timeout wraps Cost wraps the task
// itself. A retry re-enters parallelism acquisition and restarts the
// timeout clock for each attempt, so a slow-but-retriable upstream cannot
// consume more than one timeout window's worth of a held slot at a time.
type Guards struct {
	Timeout     *TimeoutEnforcer
	Parallelism *ParallelismLimiter
	Cost        *CostTracker
}

// NewGuards wires the three stateful enforcers together. Retry handlers are
// constructed per job type inside Execute since they're stateless.
func NewGuards(parallelism *ParallelismLimiter) *Guards {
	return &Guards{
		Timeout:     NewTimeoutEnforcer(),
		Parallelism: parallelism,
		Cost:        NewCostTracker(),
	}
}

// Execute runs task under jobID/attemptID's resolved budget through the
// full guard stack. task may report LLM/API usage via the *CostTracker
// passed to it so cost enforcement can intervene mid-execution.
func (g *Guards) Execute(ctx context.Context, jobID, attemptID string, budget manifest.Budget, task func(ctx context.Context, costs *CostTracker) (any, error)) (any, error) {
	retry := NewRetryHandler(jobID)

	var result any
	err := retry.Run(ctx, budget, func(attemptCtx context.Context, attemptNum int) error {
		slot, err := g.Parallelism.AcquireSlot(jobID, budget)
		if err != nil {
			return err
		}
		defer slot.Release()

		v, err := g.Timeout.Enforce(attemptCtx, budget, func(taskCtx context.Context) (any, error) {
			if g.Cost.IsOverBudget(attemptID, budget) {
				return nil, nrerrors.New(nrerrors.BudgetCostExceeded, "attempt already over cost budget", map[string]any{"attempt_id": attemptID})
			}
			return task(taskCtx, g.Cost)
		})
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
