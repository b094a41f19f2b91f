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

// Package audit is the append-only, hash-chained audit event log (C7).
package audit

import (
	"time"

	nrerrors "neurorail/pkg/errors"
)

// Category groups an event by the component that emitted it. governor,
// enforcement, reflex and lifecycle share their names with SSE fabric
// channels; executor and system have no channel of the same name.
type Category string

const (
	CategoryGovernor     Category = "governor"
	CategoryEnforcement  Category = "enforcement"
	CategoryReflex       Category = "reflex"
	CategoryExecutor     Category = "executor"
	CategoryLifecycle    Category = "lifecycle"
	CategorySystem       Category = "system"
)

// TraceIDs is the subset of a trace chain relevant to one event; any field
// may be empty if the event predates that level (e.g. a manifest creation
// has no job_id).
type TraceIDs struct {
	MissionID string
	PlanID    string
	JobID     string
	AttemptID string
}

// Event is one immutable audit record.
type Event struct {
	EventID   string
	Timestamp time.Time
	TraceIDs  TraceIDs
	Category  Category
	Severity  nrerrors.Severity
	Type      string
	Payload   map[string]any

	Hash     string
	PrevHash string
}

// Query selects events matching any subset of its non-zero fields,
// narrowed further by an optional [Start, End) time range.
type Query struct {
	MissionID string
	PlanID    string
	JobID     string
	AttemptID string
	Category  Category
	Severity  nrerrors.Severity

	Start *time.Time
	End   *time.Time

	Limit  int
	Offset int
}
