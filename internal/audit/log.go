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

package audit

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
	"neurorail/pkg/proof"
)

const globalChainKey = "_global"

// Sink is an optional durable backend a Log replicates events to (e.g. a
// persistence layer external to this process). Append still records the
// event in-memory even when replication fails, since audit is a log, not
// a set — a write failure never unwinds a caller's side effect, it is
// surfaced as its own critical event instead.
type Sink interface {
	Write(Event) error
}

// Log is the append-only, in-memory audit event log. Events are chained by
// job_id (job-less events fall back to plan_id, then mission_id, then a
// global chain, e.g. for manifest activation) the same way jobstore.memoryStore chains by job, reusing
// pkg/proof's link-hash primitive instead of a second hash routine.
type Log struct {
	mu     sync.RWMutex
	events []Event
	chains map[string][]Event // chain key -> that chain's events, newest last
	sink   Sink
}

// NewLog builds an empty Log. sink may be nil.
func NewLog(sink Sink) *Log {
	return &Log{chains: make(map[string][]Event), sink: sink}
}

func chainKey(t TraceIDs) string {
	if t.JobID != "" {
		return t.JobID
	}
	if t.PlanID != "" {
		return t.PlanID
	}
	if t.MissionID != "" {
		return t.MissionID
	}
	return globalChainKey
}

// Append records ev, computing its hash chained off the prior event in its
// trace's chain. Returns the stored (hash-stamped) event. A Sink write
// failure is reported as AUDIT_LOG_FAILURE after the event is already
// durable in-memory.
func (l *Log) Append(ev Event) (Event, error) {
	if ev.EventID == "" {
		ev.EventID = "evt_" + uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	key := chainKey(ev.TraceIDs)

	l.mu.Lock()
	chain := l.chains[key]
	var prevHash string
	if len(chain) > 0 {
		prevHash = chain[len(chain)-1].Hash
	}
	payload, _ := json.Marshal(ev.Payload)
	link := proof.Link{Key: key, Type: ev.Type, Payload: string(payload), CreatedAt: ev.Timestamp, PrevHash: prevHash}
	ev.PrevHash = prevHash
	ev.Hash = proof.ComputeLinkHash(link)

	l.chains[key] = append(chain, ev)
	l.events = append(l.events, ev)
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Write(ev); err != nil {
			metrics.AuditWriteFailuresTotal.Inc()
			return ev, nrerrors.Wrap(nrerrors.AuditLogFailure, err, "audit sink write failed", map[string]any{"event_id": ev.EventID, "chain_key": key})
		}
	}

	return ev, nil
}

// Query returns events matching q, newest first, paginated by
// q.Limit/q.Offset (Limit<=0 means unbounded).
func (l *Log) Query(q Query) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]Event, 0, len(l.events))
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if matches(e, q) {
			matched = append(matched, e)
		}
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched
}

func matches(e Event, q Query) bool {
	if q.MissionID != "" && e.TraceIDs.MissionID != q.MissionID {
		return false
	}
	if q.PlanID != "" && e.TraceIDs.PlanID != q.PlanID {
		return false
	}
	if q.JobID != "" && e.TraceIDs.JobID != q.JobID {
		return false
	}
	if q.AttemptID != "" && e.TraceIDs.AttemptID != q.AttemptID {
		return false
	}
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.Severity != "" && e.Severity != q.Severity {
		return false
	}
	if q.Start != nil && e.Timestamp.Before(*q.Start) {
		return false
	}
	if q.End != nil && !e.Timestamp.Before(*q.End) {
		return false
	}
	return true
}

// VerifyChain re-derives every event's hash within its own chain and
// confirms the prev_hash linkage holds, returning the first chain key
// found broken (if any).
func (l *Log) VerifyChain() (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.chains))
	for k := range l.chains {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		chain := l.chains[key]
		links := make([]proof.Link, len(chain))
		for i, e := range chain {
			payload, _ := json.Marshal(e.Payload)
			links[i] = proof.Link{Key: key, Type: e.Type, Payload: string(payload), CreatedAt: e.Timestamp, PrevHash: e.PrevHash, Hash: e.Hash}
		}
		if err := proof.ValidateChain(links); err != nil {
			return key, err
		}
	}
	return "", nil
}
