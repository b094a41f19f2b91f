// Copyright 2026 fanjia1024
// Tests for the audit event log

package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nrerrors "neurorail/pkg/errors"
)

func TestLog_AppendAssignsIDAndHash(t *testing.T) {
	l := NewLog(nil)
	ev, err := l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Category: CategoryGovernor, Severity: nrerrors.SeverityInfo, Type: "decision_made"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.EventID)
	assert.NotEmpty(t, ev.Hash)
	assert.Empty(t, ev.PrevHash)
}

func TestLog_ChainsWithinSameJob(t *testing.T) {
	l := NewLog(nil)
	first, err := l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "a"})
	require.NoError(t, err)
	second, err := l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "b"})
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PrevHash)
}

func TestLog_DifferentJobsAreIndependentChains(t *testing.T) {
	l := NewLog(nil)
	_, err := l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "a"})
	require.NoError(t, err)
	second, err := l.Append(Event{TraceIDs: TraceIDs{JobID: "job_2"}, Type: "a"})
	require.NoError(t, err)
	assert.Empty(t, second.PrevHash)
}

func TestLog_JoblessEventsFallBackToMissionChain(t *testing.T) {
	l := NewLog(nil)
	first, err := l.Append(Event{TraceIDs: TraceIDs{MissionID: "m_1"}, Type: "manifest_activated"})
	require.NoError(t, err)
	second, err := l.Append(Event{TraceIDs: TraceIDs{MissionID: "m_1"}, Type: "manifest_activated"})
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.PrevHash)
}

func TestLog_QueryFiltersBySubsetAndSortsNewestFirst(t *testing.T) {
	l := NewLog(nil)
	_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Category: CategoryGovernor, Type: "a"})
	_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_2"}, Category: CategoryReflex, Type: "b"})
	_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Category: CategoryGovernor, Type: "c"})

	got := l.Query(Query{JobID: "job_1"})
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Type) // newest first
	assert.Equal(t, "a", got[1].Type)
}

func TestLog_QueryPaginatesWithLimitAndOffset(t *testing.T) {
	l := NewLog(nil)
	for i := 0; i < 5; i++ {
		_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "evt"})
	}
	got := l.Query(Query{JobID: "job_1", Limit: 2, Offset: 1})
	assert.Len(t, got, 2)
}

func TestLog_QueryByTimeRange(t *testing.T) {
	l := NewLog(nil)
	mid := time.Now()
	_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "before", Timestamp: mid.Add(-time.Hour)})
	_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "after", Timestamp: mid.Add(time.Hour)})

	got := l.Query(Query{JobID: "job_1", Start: &mid})
	require.Len(t, got, 1)
	assert.Equal(t, "after", got[0].Type)
}

type failingSink struct{}

func (failingSink) Write(Event) error { return errors.New("backend unavailable") }

func TestLog_SinkFailureReturnsAuditLogFailureButStillStoresEvent(t *testing.T) {
	l := NewLog(failingSink{})
	_, err := l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "a"})
	require.Error(t, err)
	var nrErr *nrerrors.Error
	require.ErrorAs(t, err, &nrErr)
	assert.Equal(t, nrerrors.AuditLogFailure, nrErr.Code)

	got := l.Query(Query{JobID: "job_1"})
	require.Len(t, got, 1, "event must still be durable in-memory despite sink failure")
}

func TestLog_VerifyChainDetectsTamperedHash(t *testing.T) {
	l := NewLog(nil)
	_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "a"})
	_, _ = l.Append(Event{TraceIDs: TraceIDs{JobID: "job_1"}, Type: "b"})

	key, err := l.VerifyChain()
	require.NoError(t, err)
	assert.Empty(t, key)

	l.chains["job_1"][0].Hash = "tampered"
	key, err = l.VerifyChain()
	require.Error(t, err)
	assert.Equal(t, "job_1", key)
}
