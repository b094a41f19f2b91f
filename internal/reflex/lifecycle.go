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

// Package reflex is the lifecycle FSM, trigger evaluator, circuit breaker,
// and action dispatcher (C5).
package reflex

import (
	"sync"
	"time"

	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
)

// State is a job's lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSuspended State = "suspended" // reflex-triggered pause
	StateThrottled State = "throttled" // reflex-triggered rate limiting
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// allowedTransitions is the fixed state machine; terminal states transition
// to nothing.
var allowedTransitions = map[State][]State{
	StatePending:   {StateRunning, StateCancelled},
	StateRunning:   {StateSuspended, StateThrottled, StateCompleted, StateFailed, StateCancelled},
	StateSuspended: {StateRunning, StateCancelled},
	StateThrottled: {StateRunning, StateSuspended, StateCancelled},
	StateCompleted: {},
	StateFailed:    {},
	StateCancelled: {},
}

// Transition is one recorded state change.
type Transition struct {
	FromState   State
	ToState     State
	Timestamp   time.Time
	Reason      string
	TriggeredBy string // "reflex" | "manual" | "system"
}

// Lifecycle is one job's state machine, transition history, and cooldown.
type Lifecycle struct {
	mu             sync.Mutex
	jobID          string
	currentState   State
	history        []Transition
	cooldownUntil  *time.Time
	suspendCount   int
	throttleCount  int
}

// NewLifecycle builds a Lifecycle starting in PENDING.
func NewLifecycle(jobID string) *Lifecycle {
	return &Lifecycle{jobID: jobID, currentState: StatePending}
}

// Transition moves the job to toState, recording reason/triggeredBy.
// Returns REFLEX_LIFECYCLE_INVALID if the move is not in the allowed table.
func (l *Lifecycle) Transition(toState State, reason, triggeredBy string) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transitionLocked(toState, reason, triggeredBy)
}

func (l *Lifecycle) transitionLocked(toState State, reason, triggeredBy string) (Transition, error) {
	allowed := allowedTransitions[l.currentState]
	ok := false
	for _, s := range allowed {
		if s == toState {
			ok = true
			break
		}
	}
	if !ok {
		allowedStrs := make([]string, len(allowed))
		for i, s := range allowed {
			allowedStrs[i] = string(s)
		}
		return Transition{}, nrerrors.New(nrerrors.ReflexLifecycleInvalid, "illegal lifecycle transition", map[string]any{
			"job_id":              l.jobID,
			"from_state":          l.currentState,
			"to_state":            toState,
			"reason":              reason,
			"allowed_transitions": allowedStrs,
		})
	}

	t := Transition{FromState: l.currentState, ToState: toState, Timestamp: time.Now(), Reason: reason, TriggeredBy: triggeredBy}
	metrics.LifecycleTransitionsTotal.WithLabelValues(string(t.FromState), string(t.ToState), triggeredBy).Inc()

	l.currentState = toState
	l.history = append(l.history, t)

	switch toState {
	case StateSuspended:
		l.suspendCount++
	case StateThrottled:
		l.throttleCount++
	}

	return t, nil
}

// Suspend transitions to SUSPENDED and starts a cooldown.
func (l *Lifecycle) Suspend(reason string, cooldown time.Duration, triggeredBy string) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.transitionLocked(StateSuspended, reason, triggeredBy)
	if err != nil {
		return t, err
	}
	until := time.Now().Add(cooldown)
	l.cooldownUntil = &until
	return t, nil
}

// Throttle transitions to THROTTLED and starts a cooldown.
func (l *Lifecycle) Throttle(reason string, cooldown time.Duration, triggeredBy string) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.transitionLocked(StateThrottled, reason, triggeredBy)
	if err != nil {
		return t, err
	}
	until := time.Now().Add(cooldown)
	l.cooldownUntil = &until
	return t, nil
}

// Resume transitions from SUSPENDED or THROTTLED back to RUNNING and clears
// the cooldown. It does not check whether the cooldown has expired;
// CanResume reports that.
func (l *Lifecycle) Resume(reason string) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentState != StateSuspended && l.currentState != StateThrottled {
		return Transition{}, nrerrors.New(nrerrors.ReflexLifecycleInvalid, "can only resume from SUSPENDED or THROTTLED", map[string]any{
			"job_id":     l.jobID,
			"from_state": l.currentState,
		})
	}
	l.cooldownUntil = nil
	return l.transitionLocked(StateRunning, reason, "system")
}

// CanResume reports whether the job's cooldown (if any) has expired.
func (l *Lifecycle) CanResume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cooldownUntil == nil {
		return true
	}
	return !time.Now().Before(*l.cooldownUntil)
}

// GetStateDuration returns how long the job has been in its current state.
func (l *Lifecycle) GetStateDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.history) == 0 {
		return 0
	}
	return time.Since(l.history[len(l.history)-1].Timestamp)
}

// LifecycleMetrics is a point-in-time snapshot of one job's lifecycle.
type LifecycleMetrics struct {
	JobID              string
	CurrentState       State
	SuspendCount       int
	ThrottleCount      int
	TransitionCount    int
	StateDurationSec   float64
	CooldownActive     bool
}

// GetMetrics snapshots the lifecycle's counters and derived fields.
func (l *Lifecycle) GetMetrics() LifecycleMetrics {
	l.mu.Lock()
	cooldownUntil := l.cooldownUntil
	m := LifecycleMetrics{
		JobID:           l.jobID,
		CurrentState:    l.currentState,
		SuspendCount:    l.suspendCount,
		ThrottleCount:   l.throttleCount,
		TransitionCount: len(l.history),
	}
	l.mu.Unlock()

	m.StateDurationSec = l.GetStateDuration().Seconds()
	m.CooldownActive = cooldownUntil != nil && !l.CanResume()
	return m
}

// Registry is the process-wide collection of job lifecycles, one per job.
type Registry struct {
	mu         sync.Mutex
	lifecycles map[string]*Lifecycle
}

// NewRegistry builds an empty lifecycle registry.
func NewRegistry() *Registry {
	return &Registry{lifecycles: make(map[string]*Lifecycle)}
}

// Get returns jobID's lifecycle, creating one in PENDING if it doesn't
// exist yet.
func (r *Registry) Get(jobID string) *Lifecycle {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lifecycles[jobID]
	if !ok {
		l = NewLifecycle(jobID)
		r.lifecycles[jobID] = l
	}
	return l
}
