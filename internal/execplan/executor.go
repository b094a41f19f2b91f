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
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"neurorail/internal/enforcement"
	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
	"neurorail/pkg/proof"
)

// Executor is the contract every registered step handler must satisfy.
// ValidateInput and Execute are mandatory; Rollback is a no-op by default
// and must only be called when the executor declared CapabilityRollbackable.
type Executor interface {
	Name() string
	Capabilities() map[ExecutorCapability]bool
	ValidateInput(ctx context.Context, step *ExecutionStep, ec ExecutionContext) []string
	Execute(ctx context.Context, step *ExecutionStep, ec ExecutionContext) (StepResult, error)
	Rollback(ctx context.Context, step *ExecutionStep, ec ExecutionContext) (bool, error)
}

// idempotencyRecord is one cached successful execution, keyed by the hash
// of {step_id, executor_type, parameters, mode}.
type idempotencyRecord struct {
	hash   string
	result StepResult
}

// Orchestrator drives a BusinessPlan through validate → preflight →
// topological execution → rollback-on-failure.
type Orchestrator struct {
	executors map[string]Executor
	preflight *PreflightChecker
	rollback  *RollbackManager
	guards    *enforcement.Guards

	mu      sync.Mutex
	history map[string][]idempotencyRecord // keyed by step_id
}

// NewOrchestrator builds an Orchestrator using checker for preflight checks
// and guards to wrap every step's real execution with the full C4 budget
// stack (timeout, parallelism, cost, retry).
func NewOrchestrator(checker *PreflightChecker, guards *enforcement.Guards) *Orchestrator {
	return &Orchestrator{
		executors: make(map[string]Executor),
		preflight: checker,
		rollback:  NewRollbackManager(),
		guards:    guards,
		history:   make(map[string][]idempotencyRecord),
	}
}

// RegisterExecutor makes executor available under executorType.
func (o *Orchestrator) RegisterExecutor(executorType string, executor Executor) {
	o.executors[executorType] = executor
}

// ExecutePlan runs plan to completion, failure, or rollback.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan *BusinessPlan, dryRun, autoRollback bool) (ExecutionResult, error) {
	start := time.Now()

	if err := o.validatePlan(plan); err != nil {
		plan.Status = PlanFailed
		return ExecutionResult{}, err
	}

	result, err := o.preflight.CheckPrerequisites(ctx, plan)
	if err != nil {
		plan.Status = PlanFailed
		return ExecutionResult{}, err
	}
	if !result.Passed {
		plan.Status = PlanFailed
		return ExecutionResult{}, nrerrors.New(nrerrors.ExecOverbudget, "preflight checks failed", map[string]any{"plan_id": plan.PlanID, "errors": result.Errors})
	}

	plan.Status = PlanExecuting
	now := time.Now()
	plan.ExecutionStartedAt = &now

	var stepsExecuted, stepsSucceeded, stepsFailed int

	for {
		next := plan.GetNextStep()
		if next == nil {
			break
		}

		success, execErr := o.executeStep(ctx, plan, next, dryRun)
		stepsExecuted++

		if execErr != nil {
			stepsFailed++
			next.Status = StepFailed
			next.Error = execErr.Error()

			if autoRollback {
				_, _ = o.rollback.RollbackPlan(ctx, o, plan, intPtr(next.Sequence-1))
			}

			plan.Status = PlanFailed
			completed := time.Now()
			plan.ExecutionCompletedAt = &completed
			return ExecutionResult{}, nrerrors.Wrap(nrerrors.ExecOverbudget, execErr, fmt.Sprintf("plan execution failed at step %d", next.Sequence), map[string]any{"plan_id": plan.PlanID, "step_id": next.StepID})
		}

		if success {
			stepsSucceeded++
			next.Status = StepCompleted
			completed := time.Now()
			next.CompletedAt = &completed
		} else {
			stepsFailed++
			next.Status = StepFailed
			next.Error = "execution returned failure"

			if autoRollback {
				_, _ = o.rollback.RollbackPlan(ctx, o, plan, intPtr(next.Sequence-1))
			}

			plan.Status = PlanFailed
			completedAt := time.Now()
			plan.ExecutionCompletedAt = &completedAt
			return ExecutionResult{
				PlanID: plan.PlanID, Status: plan.Status, Success: false,
				Message: fmt.Sprintf("step %s failed", next.StepID),
				StepsExecuted: stepsExecuted, StepsSucceeded: stepsSucceeded, StepsFailed: stepsFailed,
				ExecutionTimeSeconds: time.Since(start).Seconds(),
			}, nil
		}
	}

	plan.Status = PlanCompleted
	completed := time.Now()
	plan.ExecutionCompletedAt = &completed

	return ExecutionResult{
		PlanID:               plan.PlanID,
		Status:               plan.Status,
		Success:              true,
		Message:              fmt.Sprintf("plan executed successfully (%d steps)", stepsSucceeded),
		StepsExecuted:        stepsExecuted,
		StepsSucceeded:       stepsSucceeded,
		StepsFailed:          stepsFailed,
		FinalURLs:            plan.FinalURLs,
		ExecutionTimeSeconds: time.Since(start).Seconds(),
	}, nil
}

// executeStep runs one step through idempotency, dry-run, and real
// execution, recording the result and reporting step-level metrics.
func (o *Orchestrator) executeStep(ctx context.Context, plan *BusinessPlan, step *ExecutionStep, dryRun bool) (bool, error) {
	executor, ok := o.executors[step.ExecutorType]
	if !ok {
		return false, nrerrors.New(nrerrors.ExecOverbudget, "no executor registered for type", map[string]any{"executor_type": step.ExecutorType})
	}

	mode := ModeNormal
	if dryRun {
		mode = ModeDryRun
	}

	hash, err := stepHash(step, mode)
	if err != nil {
		return false, err
	}

	ec := ExecutionContext{PlanID: plan.PlanID, StepID: step.StepID, Mode: mode, Budget: plan.Budget, ExecutionHash: hash}

	step.Status = StepRunning
	started := time.Now()
	step.StartedAt = &started

	if executor.Capabilities()[CapabilityIdempotent] {
		if cached, ok := o.findCached(step.StepID, hash); ok {
			step.Result = cached.Data
			return cached.Success, nil
		}
	}

	if errs := executor.ValidateInput(ctx, step, ec); len(errs) > 0 {
		return false, nrerrors.New(nrerrors.ExecOverbudget, fmt.Sprintf("input validation failed: %v", errs), map[string]any{"step_id": step.StepID})
	}

	if dryRun {
		metrics.ExecutorStepDuration.WithLabelValues(step.ExecutorType, "true").Observe(time.Since(started).Seconds())
		return true, nil
	}

	attemptID := plan.PlanID + ":" + step.StepID
	raw, err := o.guards.Execute(ctx, plan.JobID, attemptID, plan.Budget, func(taskCtx context.Context, _ *enforcement.CostTracker) (any, error) {
		return executor.Execute(taskCtx, step, ec)
	})
	duration := time.Since(started).Seconds()

	var res StepResult
	if err == nil {
		res, _ = raw.(StepResult)
	}
	metrics.ExecutorStepDuration.WithLabelValues(step.ExecutorType, fmt.Sprintf("%t", err == nil && res.Success)).Observe(duration)
	if err != nil {
		return false, err
	}

	step.Result = res.Data
	if len(res.EvidenceFiles) > 0 {
		step.EvidencePath = res.EvidenceFiles[0]
	}

	if executor.Capabilities()[CapabilityIdempotent] {
		o.recordHistory(step.StepID, hash, res)
	}

	return res.Success, nil
}

func (o *Orchestrator) findCached(stepID, hash string) (StepResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range o.history[stepID] {
		if rec.hash == hash {
			return rec.result, true
		}
	}
	return StepResult{}, false
}

func (o *Orchestrator) recordHistory(stepID, hash string, res StepResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history[stepID] = append(o.history[stepID], idempotencyRecord{hash: hash, result: res})
}

// validatePlan rejects unregistered executor types, unknown dependencies,
// and dependency cycles before any step runs.
func (o *Orchestrator) validatePlan(plan *BusinessPlan) error {
	var errs []string

	if len(plan.Steps) == 0 {
		errs = append(errs, "plan has no steps")
	}

	stepIDs := make(map[string]bool, len(plan.Steps))
	for _, s := range plan.Steps {
		stepIDs[s.StepID] = true
		if _, ok := o.executors[s.ExecutorType]; !ok {
			errs = append(errs, fmt.Sprintf("no executor registered for type: %s (step %s)", s.ExecutorType, s.StepID))
		}
	}

	for _, s := range plan.Steps {
		for _, dep := range s.DependsOn {
			if !stepIDs[dep] {
				errs = append(errs, fmt.Sprintf("step %s depends on non-existent step: %s", s.StepID, dep))
			}
		}
	}

	if cycle := findCycle(plan.Steps); cycle != "" {
		errs = append(errs, "dependency cycle detected: "+cycle)
	}

	if len(errs) > 0 {
		return nrerrors.New(nrerrors.ExecOverbudget, fmt.Sprintf("plan validation failed: %v", errs), map[string]any{"plan_id": plan.PlanID})
	}
	return nil
}

// findCycle returns a description of the first cycle found via DFS, or ""
// if the dependency graph is acyclic.
func findCycle(steps []*ExecutionStep) string {
	byID := make(map[string]*ExecutionStep, len(steps))
	for _, s := range steps {
		byID[s.StepID] = s
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))

	var visit func(id string, path []string) string
	visit = func(id string, path []string) string {
		color[id] = gray
		path = append(path, id)
		if s, ok := byID[id]; ok {
			deps := append([]string(nil), s.DependsOn...)
			sort.Strings(deps)
			for _, dep := range deps {
				switch color[dep] {
				case gray:
					return fmt.Sprintf("%v -> %s", path, dep)
				case white:
					if c := visit(dep, path); c != "" {
						return c
					}
				}
			}
		}
		color[id] = black
		return ""
	}

	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.StepID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if c := visit(id, nil); c != "" {
				return c
			}
		}
	}
	return ""
}

// stepHash fingerprints {step_id, executor_type, parameters, mode} by
// hashing their JSON encoding with pkg/proof.ComputeFileHash.
func stepHash(step *ExecutionStep, mode ExecutionMode) (string, error) {
	payload := struct {
		StepID       string         `json:"step_id"`
		ExecutorType string         `json:"executor_type"`
		Parameters   map[string]any `json:"parameters"`
		Mode         ExecutionMode  `json:"mode"`
	}{StepID: step.StepID, ExecutorType: step.ExecutorType, Parameters: step.Parameters, Mode: mode}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return proof.ComputeFileHash(b), nil
}

func intPtr(v int) *int { return &v }
