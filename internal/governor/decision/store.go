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

package decision

import (
	"sort"
	"sync"
	"time"

	"neurorail/internal/governor/manifest"
	nrerrors "neurorail/pkg/errors"
)

// Store is the append-only, in-memory record of every decision made.
// Decisions are immutable once stored (spec invariant: a decision record is
// never edited, only ever superseded by a later one for the same job).
type Store struct {
	mu        sync.RWMutex
	decisions []GovernorDecision
	byID      map[string]int // decision_id -> index, for O(1) Get
}

// NewStore builds an empty decision store.
func NewStore() *Store {
	return &Store{byID: make(map[string]int)}
}

// Create appends decision to the store.
func (s *Store) Create(d GovernorDecision) GovernorDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[d.DecisionID] = len(s.decisions)
	s.decisions = append(s.decisions, d)
	return d
}

// Get returns the decision with decisionID, or a MANIFEST_NOT_FOUND error
// if no stored decision has that ID.
func (s *Store) Get(decisionID string) (GovernorDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[decisionID]
	if !ok {
		return GovernorDecision{}, nrerrors.New(nrerrors.ManifestNotFound, "decision not found", map[string]any{"decision_id": decisionID})
	}
	return s.decisions[idx], nil
}

// Query filters decisions by q's non-zero fields, newest first, paginated.
func (s *Store) Query(q DecisionQuery) []GovernorDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []GovernorDecision
	for _, d := range s.decisions {
		if q.MissionID != "" && d.MissionID != q.MissionID {
			continue
		}
		if q.JobID != "" && d.JobID != q.JobID {
			continue
		}
		if q.JobType != "" && d.JobType != q.JobType {
			continue
		}
		if q.Mode != "" && d.Mode != q.Mode {
			continue
		}
		if q.ManifestVersion != "" && d.ManifestVersion != q.ManifestVersion {
			continue
		}
		if q.RecoveryStrategy != "" && d.RecoveryStrategy != q.RecoveryStrategy {
			continue
		}
		if q.ShadowMode != nil && d.ShadowMode != *q.ShadowMode {
			continue
		}
		if q.StartTime != nil && d.Timestamp.Before(*q.StartTime) {
			continue
		}
		if q.EndTime != nil && d.Timestamp.After(*q.EndTime) {
			continue
		}
		matched = append(matched, d)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	offset := q.Offset
	if offset >= len(matched) {
		return nil
	}
	matched = matched[offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched
}

// Statistics aggregates the store's decisions, optionally time-bounded.
func (s *Store) Statistics(start, end *time.Time) DecisionStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := DecisionStatistics{
		ByMode:             make(map[manifest.Mode]int),
		ByManifestVersion:  make(map[string]int),
		ByRecoveryStrategy: make(map[manifest.RecoveryStrategy]int),
	}

	for _, d := range s.decisions {
		if start != nil && d.Timestamp.Before(*start) {
			continue
		}
		if end != nil && d.Timestamp.After(*end) {
			continue
		}
		stats.Total++
		stats.ByMode[d.Mode]++
		stats.ByManifestVersion[d.ManifestVersion]++
		stats.ByRecoveryStrategy[d.RecoveryStrategy]++
		if d.ImmuneAlertRequired {
			stats.ImmuneAlertsRequired++
		}
	}
	return stats
}

// ShadowCompare re-evaluates ctx against both the active and shadow
// evaluators and reports whether their top-level decisions (mode and
// recovery strategy) diverge. Budget differences do not count toward
// divergence; only the decision a job would actually receive does.
func ShadowCompare(active, shadow *Evaluator, ctx DecisionContext) (activeDecision, shadowDecision GovernorDecision, diverged bool, err error) {
	activeDecision, err = active.Evaluate(ctx, false)
	if err != nil {
		return GovernorDecision{}, GovernorDecision{}, false, err
	}
	shadowDecision, err = shadow.Evaluate(ctx, true)
	if err != nil {
		return GovernorDecision{}, GovernorDecision{}, false, err
	}
	diverged = activeDecision.Mode != shadowDecision.Mode || activeDecision.RecoveryStrategy != shadowDecision.RecoveryStrategy
	return activeDecision, shadowDecision, diverged, nil
}
