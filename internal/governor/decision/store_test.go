// Copyright 2026 fanjia1024
// Tests for the decision store

package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurorail/internal/governor/manifest"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore()
	d := s.Create(GovernorDecision{DecisionID: "dec_1", JobType: "export_job", Mode: manifest.ModeDirect, Timestamp: time.Now()})
	got, err := s.Get(d.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, "export_job", got.JobType)
}

func TestStore_GetNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Get("missing")
	require.Error(t, err)
}

func TestStore_QueryFiltersAndOrders(t *testing.T) {
	s := NewStore()
	t0 := time.Now()
	s.Create(GovernorDecision{DecisionID: "d1", JobType: "a", Mode: manifest.ModeDirect, Timestamp: t0})
	s.Create(GovernorDecision{DecisionID: "d2", JobType: "b", Mode: manifest.ModeRail, Timestamp: t0.Add(time.Second)})
	s.Create(GovernorDecision{DecisionID: "d3", JobType: "a", Mode: manifest.ModeRail, Timestamp: t0.Add(2 * time.Second)})

	results := s.Query(DecisionQuery{JobType: "a"})
	require.Len(t, results, 2)
	assert.Equal(t, "d3", results[0].DecisionID) // newest first
}

func TestStore_Statistics(t *testing.T) {
	s := NewStore()
	s.Create(GovernorDecision{DecisionID: "d1", Mode: manifest.ModeDirect, RecoveryStrategy: manifest.RecoveryRetry, Timestamp: time.Now()})
	s.Create(GovernorDecision{DecisionID: "d2", Mode: manifest.ModeRail, RecoveryStrategy: manifest.RecoveryManualConfirm, ImmuneAlertRequired: true, Timestamp: time.Now()})

	stats := s.Statistics(nil, nil)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByMode[manifest.ModeDirect])
	assert.Equal(t, 1, stats.ImmuneAlertsRequired)
}
