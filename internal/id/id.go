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

// Package id allocates mission/plan/job/attempt IDs and reconstructs trace
// chains (C1).
package id

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	nrerrors "neurorail/pkg/errors"
)

var counter uint64

func next(prefix string) string {
	n := atomic.AddUint64(&counter, 1)
	return fmt.Sprintf("%s%d_%s", prefix, n, uuid.New().String()[:8])
}

// Mission is user-level intent; owner of a list of Plans.
type Mission struct {
	MissionID string
	Tags      map[string]string
	CreatedAt time.Time
}

// Plan is an ordered/graph collection of Jobs.
type Plan struct {
	PlanID    string
	MissionID string
	PlanType  string // "sequential" | "dag"
}

// Job is a unit of governed work.
type Job struct {
	JobID            string
	PlanID           string
	JobType          string
	DependsOn        map[string]struct{}
	RollbackPossible bool
}

// Attempt is one execution try of a Job.
type Attempt struct {
	AttemptID     string
	JobID         string
	AttemptNumber int
	StartTime     time.Time
	EndTime       *time.Time
	Status        string
}

// Trace is the full lineage reconstructable from an attempt ID alone.
type Trace struct {
	Mission Mission
	Plan    Plan
	Job     Job
	Attempt Attempt
}

// Registry is the arena the trace entities live in, referenced by typed ID
// rather than by pointer, so a Job can reference its parent Plan without
// the two structs holding pointers into each other.
type Registry struct {
	mu        sync.RWMutex
	missions  map[string]Mission
	plans     map[string]Plan
	jobs      map[string]Job
	attempts  map[string]Attempt
	jobPlan   map[string]string // jobID -> planID, for trace reconstruction
	planMission map[string]string
}

// NewRegistry builds an empty trace registry.
func NewRegistry() *Registry {
	return &Registry{
		missions:    make(map[string]Mission),
		plans:       make(map[string]Plan),
		jobs:        make(map[string]Job),
		attempts:    make(map[string]Attempt),
		jobPlan:     make(map[string]string),
		planMission: make(map[string]string),
	}
}

// NewMission allocates a Mission.
func (r *Registry) NewMission(tags map[string]string) Mission {
	m := Mission{MissionID: next("m_"), Tags: tags, CreatedAt: time.Now()}
	r.mu.Lock()
	r.missions[m.MissionID] = m
	r.mu.Unlock()
	return m
}

// NewPlan allocates a Plan under missionID. Fails ORPHAN_KILLED if the
// mission does not exist.
func (r *Registry) NewPlan(missionID, planType string) (Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.missions[missionID]; !ok {
		return Plan{}, nrerrors.New(nrerrors.OrphanKilled, "plan references unknown mission", map[string]any{"mission_id": missionID})
	}
	p := Plan{PlanID: next("p_"), MissionID: missionID, PlanType: planType}
	r.plans[p.PlanID] = p
	r.planMission[p.PlanID] = missionID
	return p, nil
}

// NewJob allocates a Job under planID. Fails ORPHAN_KILLED if the plan does
// not exist.
func (r *Registry) NewJob(planID, jobType string, dependsOn []string, rollbackPossible bool) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[planID]; !ok {
		return Job{}, nrerrors.New(nrerrors.OrphanKilled, "job references unknown plan", map[string]any{"plan_id": planID})
	}
	deps := make(map[string]struct{}, len(dependsOn))
	for _, d := range dependsOn {
		deps[d] = struct{}{}
	}
	j := Job{JobID: next("j_"), PlanID: planID, JobType: jobType, DependsOn: deps, RollbackPossible: rollbackPossible}
	r.jobs[j.JobID] = j
	r.jobPlan[j.JobID] = planID
	return j, nil
}

// NewAttempt allocates the next Attempt for jobID. Fails ORPHAN_KILLED if
// the job does not exist.
func (r *Registry) NewAttempt(jobID string) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[jobID]; !ok {
		return Attempt{}, nrerrors.New(nrerrors.OrphanKilled, "attempt references unknown job", map[string]any{"job_id": jobID})
	}
	n := 1
	for _, a := range r.attempts {
		if a.JobID == jobID && a.AttemptNumber >= n {
			n = a.AttemptNumber + 1
		}
	}
	a := Attempt{AttemptID: next("a_"), JobID: jobID, AttemptNumber: n, StartTime: time.Now(), Status: "pending"}
	r.attempts[a.AttemptID] = a
	return a, nil
}

// Trace reconstructs the full mission/plan/job/attempt chain from an
// attempt ID alone.
func (r *Registry) Trace(attemptID string) (Trace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempt, ok := r.attempts[attemptID]
	if !ok {
		return Trace{}, nrerrors.New(nrerrors.MissingTraceContext, "unknown attempt_id", map[string]any{"attempt_id": attemptID})
	}
	job, ok := r.jobs[attempt.JobID]
	if !ok {
		return Trace{}, nrerrors.New(nrerrors.MissingTraceContext, "attempt's job missing", map[string]any{"job_id": attempt.JobID})
	}
	planID := r.jobPlan[job.JobID]
	plan, ok := r.plans[planID]
	if !ok {
		return Trace{}, nrerrors.New(nrerrors.MissingTraceContext, "job's plan missing", map[string]any{"plan_id": planID})
	}
	missionID := r.planMission[plan.PlanID]
	mission, ok := r.missions[missionID]
	if !ok {
		return Trace{}, nrerrors.New(nrerrors.MissingTraceContext, "plan's mission missing", map[string]any{"mission_id": missionID})
	}

	return Trace{Mission: mission, Plan: plan, Job: job, Attempt: attempt}, nil
}

// UpdateAttemptStatus records a new status (and end time on terminal
// status) for an in-flight attempt; status/timestamps are the only
// mutable fields on an otherwise write-once Attempt.
func (r *Registry) UpdateAttemptStatus(attemptID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return nrerrors.New(nrerrors.MissingTraceContext, "unknown attempt_id", map[string]any{"attempt_id": attemptID})
	}
	a.Status = status
	if status == "completed" || status == "failed" || status == "cancelled" {
		now := time.Now()
		a.EndTime = &now
	}
	r.attempts[attemptID] = a
	return nil
}
