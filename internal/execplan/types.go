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

// Package execplan drives a BusinessPlan's step DAG through preflight,
// topological execution, idempotency short-circuiting, and rollback (C6).
package execplan

import (
	"time"

	"neurorail/internal/governor/manifest"
)

// ExecutorCapability is a guarantee a registered Executor declares and must
// honor.
type ExecutorCapability string

const (
	CapabilityIdempotent  ExecutorCapability = "idempotent"
	CapabilityRollbackable ExecutorCapability = "rollbackable"
	CapabilityAtomic      ExecutorCapability = "atomic"
	CapabilityResumable   ExecutorCapability = "resumable"
)

// StepStatus is one step's position in its own lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepRunning    StepStatus = "running"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepRolledBack StepStatus = "rolled_back"
	StepSkipped    StepStatus = "skipped"
)

// PlanStatus is a BusinessPlan's overall status.
type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanExecuting  PlanStatus = "executing"
	PlanCompleted  PlanStatus = "completed"
	PlanFailed     PlanStatus = "failed"
	PlanRolledBack PlanStatus = "rolled_back"
)

// ExecutionMode mirrors a job's execution mode for this step's attempt.
type ExecutionMode string

const (
	ModeDryRun ExecutionMode = "dry_run"
	ModeNormal ExecutionMode = "normal"
)

// ExecutionStep is one node in a plan's dependency DAG.
type ExecutionStep struct {
	StepID          string
	Name            string
	Sequence        int
	ExecutorType    string
	TemplateID      string
	Parameters      map[string]any
	DependsOn       []string
	RollbackPossible bool

	Status       StepStatus
	Result       map[string]any
	EvidencePath string
	Error        string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	RolledBackAt *time.Time
}

// StepResult is what an Executor returns for one step attempt.
type StepResult struct {
	StepID          string
	Success         bool
	Data            map[string]any
	EvidenceFiles   []string
	DurationSeconds float64
}

// BusinessPlan is the ordered set of steps a mission's job executes.
type BusinessPlan struct {
	PlanID    string
	MissionID string
	JobID     string
	Budget    manifest.Budget // resolved by C3 for JobID; wraps every step's execution
	Steps     []*ExecutionStep

	Status               PlanStatus
	ExecutionStartedAt   *time.Time
	ExecutionCompletedAt *time.Time
	FinalURLs            map[string]string
}

// StepsTotal returns the plan's total step count.
func (p *BusinessPlan) StepsTotal() int { return len(p.Steps) }

// GetNextStep returns the lowest-sequence step whose dependencies are all
// COMPLETED and which is itself still PENDING, or nil if none remain.
func (p *BusinessPlan) GetNextStep() *ExecutionStep {
	completed := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Status == StepCompleted {
			completed[s.StepID] = true
		}
	}

	var candidate *ExecutionStep
	for _, s := range p.Steps {
		if s.Status != StepPending {
			continue
		}
		ready := true
		for _, dep := range s.DependsOn {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		if candidate == nil || s.Sequence < candidate.Sequence {
			candidate = s
		}
	}
	return candidate
}

// ExecutionContext carries the per-step execution parameters an Executor
// needs: budget (resolved by C3), mode, and the idempotency fingerprint.
type ExecutionContext struct {
	PlanID        string
	StepID        string
	Mode          ExecutionMode
	Budget        manifest.Budget
	ExecutionHash string
}

// ExecutionResult is the plan-level outcome returned by Orchestrator.ExecutePlan.
type ExecutionResult struct {
	PlanID               string
	Status               PlanStatus
	Success              bool
	Message              string
	StepsExecuted        int
	StepsSucceeded       int
	StepsFailed          int
	FinalURLs            map[string]string
	ExecutionTimeSeconds float64
}

// PreflightCheck is one individual prerequisite check's outcome.
type PreflightCheck struct {
	Name    string
	Passed  bool
	Message string
	Details map[string]any
}

// PreflightResult aggregates all prerequisite checks for a plan.
type PreflightResult struct {
	Passed   bool
	Checks   []PreflightCheck
	Errors   []string
	Warnings []string
}

// RollbackResult is the outcome of rolling back some or all of a plan's
// completed steps.
type RollbackResult struct {
	PlanID           string
	Success          bool
	StepsRolledBack  int
	Errors           []string
}
