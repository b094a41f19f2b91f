// Copyright 2026 fanjia1024
// Tests for the reflex action dispatcher

package reflex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nrerrors "neurorail/pkg/errors"
)

func TestActionDispatcher_SuspendAppliesToLifecycle(t *testing.T) {
	reg := NewRegistry()
	lc := reg.Get("job_1")
	_, err := lc.Transition(StateRunning, "start", "system")
	require.NoError(t, err)

	d := NewActionDispatcher(reg, nil)
	err = d.Dispatch(Action{Type: ActionSuspend, JobID: "job_1", Reason: "failure spike", Cooldown: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, StateSuspended, lc.currentState)
}

func TestActionDispatcher_ThrottleInstallsLimiter(t *testing.T) {
	reg := NewRegistry()
	lc := reg.Get("job_1")
	_, _ = lc.Transition(StateRunning, "start", "system")

	d := NewActionDispatcher(reg, nil)
	err := d.Dispatch(Action{Type: ActionThrottle, JobID: "job_1", Reason: "rate limited"})
	require.NoError(t, err)
	assert.Equal(t, StateThrottled, lc.currentState)

	// first call consumes the single burst token, immediate second call is denied
	assert.True(t, d.Allow("job_1"))
	assert.False(t, d.Allow("job_1"))
}

func TestActionDispatcher_AllowDefaultsTrueWhenNeverThrottled(t *testing.T) {
	reg := NewRegistry()
	d := NewActionDispatcher(reg, nil)
	assert.True(t, d.Allow("job_never_throttled"))
}

func TestActionDispatcher_CancelTransitionsToCancelled(t *testing.T) {
	reg := NewRegistry()
	lc := reg.Get("job_1")
	d := NewActionDispatcher(reg, nil)

	err := d.Dispatch(Action{Type: ActionCancel, JobID: "job_1", Reason: "operator override"})
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, lc.currentState)
}

func TestActionDispatcher_CancelFromTerminalStateFails(t *testing.T) {
	reg := NewRegistry()
	lc := reg.Get("job_1")
	_, _ = lc.Transition(StateRunning, "start", "system")
	_, _ = lc.Transition(StateCompleted, "done", "system")

	d := NewActionDispatcher(reg, nil)
	err := d.Dispatch(Action{Type: ActionCancel, JobID: "job_1", Reason: "too late"})
	require.Error(t, err)
	var nrErr *nrerrors.Error
	require.ErrorAs(t, err, &nrErr)
	assert.Equal(t, nrerrors.ReflexActionFailed, nrErr.Code)
}

func TestActionDispatcher_AlertInvokesCallback(t *testing.T) {
	reg := NewRegistry()
	var got Action
	called := false
	d := NewActionDispatcher(reg, func(a Action) { called = true; got = a })

	err := d.Dispatch(Action{Type: ActionAlert, JobID: "job_1", Reason: "circuit open"})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "job_1", got.JobID)
}

func TestActionDispatcher_UnknownTypeFails(t *testing.T) {
	reg := NewRegistry()
	d := NewActionDispatcher(reg, nil)

	err := d.Dispatch(Action{Type: ActionType("BOGUS"), JobID: "job_1"})
	require.Error(t, err)
	var nrErr *nrerrors.Error
	require.ErrorAs(t, err, &nrErr)
	assert.Equal(t, nrerrors.ReflexActionFailed, nrErr.Code)
}
