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

package reflex

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
)

// ActionType is the kind of reflex action a trigger firing can dispatch to.
type ActionType string

const (
	ActionSuspend  ActionType = "SUSPEND"
	ActionThrottle ActionType = "THROTTLE"
	ActionAlert    ActionType = "ALERT"
	ActionCancel   ActionType = "CANCEL"
)

// Action is one dispatch request produced by a fired trigger.
type Action struct {
	Type     ActionType
	JobID    string
	Reason   string
	Cooldown time.Duration
}

// ActionDispatcher applies Actions against a Registry of job lifecycles,
// rate-limiting THROTTLE via a per-job token bucket.
type ActionDispatcher struct {
	lifecycles *Registry

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	alertFn  func(Action)
}

// NewActionDispatcher builds a dispatcher over lifecycles. alertFn is
// invoked for ALERT actions (e.g. forwarding to the SSE fabric); it may be
// nil, in which case ALERT is a no-op beyond logging via metrics.
func NewActionDispatcher(lifecycles *Registry, alertFn func(Action)) *ActionDispatcher {
	return &ActionDispatcher{lifecycles: lifecycles, limiters: make(map[string]*rate.Limiter), alertFn: alertFn}
}

// Dispatch applies action against its job's lifecycle. Returns
// REFLEX_ACTION_FAILED if the action cannot be legally applied (e.g. the
// job is already in a terminal state).
func (d *ActionDispatcher) Dispatch(action Action) error {
	lc := d.lifecycles.Get(action.JobID)

	switch action.Type {
	case ActionSuspend:
		cooldown := action.Cooldown
		if cooldown <= 0 {
			cooldown = 60 * time.Second
		}
		if _, err := lc.Suspend(action.Reason, cooldown, "reflex"); err != nil {
			metrics.ReflexActionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
			return nrerrors.Wrap(nrerrors.ReflexActionFailed, err, "suspend action could not be applied", map[string]any{"job_id": action.JobID})
		}

	case ActionThrottle:
		cooldown := action.Cooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		if _, err := lc.Throttle(action.Reason, cooldown, "reflex"); err != nil {
			metrics.ReflexActionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
			return nrerrors.Wrap(nrerrors.ReflexActionFailed, err, "throttle action could not be applied", map[string]any{"job_id": action.JobID})
		}
		d.throttleLimiter(action.JobID)

	case ActionCancel:
		if _, err := lc.Transition(StateCancelled, action.Reason, "reflex"); err != nil {
			metrics.ReflexActionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
			return nrerrors.Wrap(nrerrors.ReflexActionFailed, err, "cancel action could not be applied", map[string]any{"job_id": action.JobID})
		}

	case ActionAlert:
		if d.alertFn != nil {
			d.alertFn(action)
		}

	default:
		metrics.ReflexActionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
		return nrerrors.New(nrerrors.ReflexActionFailed, "unknown reflex action type", map[string]any{"type": action.Type, "job_id": action.JobID})
	}

	metrics.ReflexActionsTotal.WithLabelValues(string(action.Type), "applied").Inc()
	return nil
}

// throttleLimiter returns (creating if needed) the token bucket governing
// jobID while it is in the THROTTLED state.
func (d *ActionDispatcher) throttleLimiter(jobID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[jobID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(1), 1) // 1 req/sec while throttled
		d.limiters[jobID] = l
	}
	return l
}

// Allow reports whether jobID, currently throttled, may proceed with its
// next unit of work.
func (d *ActionDispatcher) Allow(jobID string) bool {
	d.mu.Lock()
	l, ok := d.limiters[jobID]
	d.mu.Unlock()
	if !ok {
		return true
	}
	return l.Allow()
}
