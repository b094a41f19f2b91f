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

package execplan

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"neurorail/internal/metrics"
)

// RollbackManager walks a plan's completed steps in reverse sequence order,
// invoking each rollback-capable executor's Rollback. A step declared
// non-rollbackable (fiscal/structural effects already propagated, e.g. DNS)
// is skipped and requires manual resolution.
type RollbackManager struct{}

// NewRollbackManager builds an empty RollbackManager; it holds no state of
// its own, deferring entirely to the plan and orchestrator passed in.
func NewRollbackManager() *RollbackManager {
	return &RollbackManager{}
}

// RollbackPlan rolls back plan's COMPLETED steps, most recent first. If
// upToStep is non-nil, only steps with Sequence <= *upToStep are
// considered. Failures during one step's rollback are recorded but do not
// stop the walk.
func (r *RollbackManager) RollbackPlan(ctx context.Context, o *Orchestrator, plan *BusinessPlan, upToStep *int) (RollbackResult, error) {
	toRollback := make([]*ExecutionStep, 0, len(plan.Steps))
	for i := len(plan.Steps) - 1; i >= 0; i-- {
		s := plan.Steps[i]
		if s.Status != StepCompleted {
			continue
		}
		if upToStep != nil && s.Sequence > *upToStep {
			continue
		}
		toRollback = append(toRollback, s)
	}

	var merr *multierror.Error
	rolledBack := 0

	for _, step := range toRollback {
		if !step.RollbackPossible {
			merr = multierror.Append(merr, fmt.Errorf("step %s cannot be rolled back (fiscal/structural effect, manual resolution required)", step.StepID))
			metrics.ExecutorRollbackTotal.WithLabelValues("skipped").Inc()
			continue
		}

		executor, ok := o.executors[step.ExecutorType]
		if !ok {
			merr = multierror.Append(merr, fmt.Errorf("no executor for rollback: %s", step.ExecutorType))
			metrics.ExecutorRollbackTotal.WithLabelValues("failed").Inc()
			continue
		}
		if !executor.Capabilities()[CapabilityRollbackable] {
			merr = multierror.Append(merr, fmt.Errorf("executor %s does not support rollback", executor.Name()))
			metrics.ExecutorRollbackTotal.WithLabelValues("failed").Inc()
			continue
		}

		ec := ExecutionContext{PlanID: plan.PlanID, StepID: step.StepID}
		ok2, err := executor.Rollback(ctx, step, ec)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("rollback failed for step %s: %w", step.StepID, err))
			metrics.ExecutorRollbackTotal.WithLabelValues("failed").Inc()
			continue
		}
		if !ok2 {
			merr = multierror.Append(merr, fmt.Errorf("rollback reported failure for step %s", step.StepID))
			metrics.ExecutorRollbackTotal.WithLabelValues("failed").Inc()
			continue
		}

		step.Status = StepRolledBack
		now := time.Now()
		step.RolledBackAt = &now
		rolledBack++
		metrics.ExecutorRollbackTotal.WithLabelValues("succeeded").Inc()
	}

	plan.Status = PlanRolledBack

	var errs []string
	if merr != nil {
		for _, e := range merr.Errors {
			errs = append(errs, e.Error())
		}
	}

	return RollbackResult{
		PlanID:          plan.PlanID,
		Success:         merr == nil,
		StepsRolledBack: rolledBack,
		Errors:          errs,
	}, merr.ErrorOrNil()
}
