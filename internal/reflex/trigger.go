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

	"neurorail/internal/metrics"
)

// TriggerEvent is one observation fed into a sliding-window trigger
// (an attempt failing, succeeding, or any other countable occurrence).
type TriggerEvent struct {
	Target    string
	Failed    bool
	Timestamp time.Time
}

// Trigger watches a sliding window of events for a target and fires once
// the failure ratio within the window crosses threshold, entering a
// cooldown so it cannot re-fire immediately after.
type Trigger struct {
	mu         sync.Mutex
	triggerID  string
	window     time.Duration
	threshold  float64 // failure ratio, 0..1
	minSamples int
	cooldown   time.Duration

	events       map[string][]TriggerEvent
	cooldownUntil map[string]time.Time
}

// NewTrigger builds a Trigger evaluating over window with the given
// failure-ratio threshold, requiring at least minSamples events before it
// can fire, and entering cooldown once it does.
func NewTrigger(triggerID string, window time.Duration, threshold float64, minSamples int, cooldown time.Duration) *Trigger {
	return &Trigger{
		triggerID:     triggerID,
		window:        window,
		threshold:     threshold,
		minSamples:    minSamples,
		cooldown:      cooldown,
		events:        make(map[string][]TriggerEvent),
		cooldownUntil: make(map[string]time.Time),
	}
}

// Observe records ev and reports whether the trigger fires for its target.
// A target in cooldown never fires, regardless of its window's ratio.
func (t *Trigger) Observe(ev TriggerEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if until, ok := t.cooldownUntil[ev.Target]; ok && now.Before(until) {
		t.events[ev.Target] = append(t.events[ev.Target], ev)
		return false
	}

	events := append(t.events[ev.Target], ev)
	cutoff := now.Add(-t.window)
	kept := events[:0]
	for _, e := range events {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	t.events[ev.Target] = kept

	if len(kept) < t.minSamples {
		return false
	}

	failures := 0
	for _, e := range kept {
		if e.Failed {
			failures++
		}
	}
	ratio := float64(failures) / float64(len(kept))

	if ratio < t.threshold {
		return false
	}

	t.cooldownUntil[ev.Target] = now.Add(t.cooldown)
	metrics.ReflexTriggersTotal.WithLabelValues(t.triggerID).Inc()
	return true
}

// InCooldown reports whether target is currently within this trigger's
// cooldown window.
func (t *Trigger) InCooldown(target string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.cooldownUntil[target]
	if !ok {
		return false
	}
	return time.Now().Before(until)
}
