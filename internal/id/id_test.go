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

package id

import (
	"testing"

	nrerrors "neurorail/pkg/errors"
)

func TestTraceReconstruction(t *testing.T) {
	r := NewRegistry()
	mission := r.NewMission(map[string]string{"owner": "qa"})
	plan, err := r.NewPlan(mission.MissionID, "sequential")
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	job, err := r.NewJob(plan.PlanID, "data_collection", nil, false)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	attempt, err := r.NewAttempt(job.JobID)
	if err != nil {
		t.Fatalf("NewAttempt() error = %v", err)
	}

	tr, err := r.Trace(attempt.AttemptID)
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}
	if tr.Mission.MissionID != mission.MissionID {
		t.Errorf("Trace().Mission = %s, want %s", tr.Mission.MissionID, mission.MissionID)
	}
	if tr.Plan.PlanID != plan.PlanID {
		t.Errorf("Trace().Plan = %s, want %s", tr.Plan.PlanID, plan.PlanID)
	}
	if tr.Job.JobID != job.JobID {
		t.Errorf("Trace().Job = %s, want %s", tr.Job.JobID, job.JobID)
	}
}

func TestOrphanJobFailsClosed(t *testing.T) {
	r := NewRegistry()
	_, err := r.NewJob("p_nonexistent", "x", nil, false)
	if err == nil {
		t.Fatal("NewJob() with unknown plan_id should fail")
	}
	if !nrerrors.Is(err, nrerrors.OrphanKilled) {
		t.Errorf("NewJob() error should be ORPHAN_KILLED, got %v", err)
	}
}

func TestOrphanPlanFailsClosed(t *testing.T) {
	r := NewRegistry()
	_, err := r.NewPlan("m_nonexistent", "sequential")
	if !nrerrors.Is(err, nrerrors.OrphanKilled) {
		t.Errorf("NewPlan() error should be ORPHAN_KILLED, got %v", err)
	}
}

func TestAttemptNumbersIncrement(t *testing.T) {
	r := NewRegistry()
	mission := r.NewMission(nil)
	plan, _ := r.NewPlan(mission.MissionID, "sequential")
	job, _ := r.NewJob(plan.PlanID, "x", nil, false)

	a1, _ := r.NewAttempt(job.JobID)
	a2, _ := r.NewAttempt(job.JobID)
	if a1.AttemptNumber != 1 {
		t.Errorf("first attempt number = %d, want 1", a1.AttemptNumber)
	}
	if a2.AttemptNumber != 2 {
		t.Errorf("second attempt number = %d, want 2", a2.AttemptNumber)
	}
}

func TestIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	m1 := r.NewMission(nil)
	m2 := r.NewMission(nil)
	if m1.MissionID == m2.MissionID {
		t.Error("two missions should get distinct IDs")
	}
}
