// Copyright 2026 fanjia1024
// Tests for the sliding-window reflex trigger

package reflex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrigger_DoesNotFireBelowMinSamples(t *testing.T) {
	tr := NewTrigger("trg_failure_ratio", time.Minute, 0.5, 5, 10*time.Second)
	now := time.Now()
	for i := 0; i < 3; i++ {
		fired := tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now})
		assert.False(t, fired)
	}
}

func TestTrigger_FiresOnceRatioCrossesThreshold(t *testing.T) {
	tr := NewTrigger("trg_failure_ratio", time.Minute, 0.5, 4, 10*time.Second)
	now := time.Now()

	assert.False(t, tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now}))
	assert.False(t, tr.Observe(TriggerEvent{Target: "tool:search", Failed: false, Timestamp: now}))
	assert.False(t, tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now}))
	// 3/4 failures >= 0.5 threshold once the 4th sample lands
	assert.True(t, tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now}))
}

func TestTrigger_EntersCooldownAfterFiring(t *testing.T) {
	tr := NewTrigger("trg_failure_ratio", time.Minute, 0.5, 2, 50*time.Millisecond)
	now := time.Now()

	tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now})
	fired := tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now})
	assert.True(t, fired)
	assert.True(t, tr.InCooldown("tool:search"))

	refired := tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now})
	assert.False(t, refired)

	time.Sleep(60 * time.Millisecond)
	assert.False(t, tr.InCooldown("tool:search"))
}

func TestTrigger_WindowExpiryDropsOldEvents(t *testing.T) {
	tr := NewTrigger("trg_failure_ratio", 20*time.Millisecond, 0.5, 2, 10*time.Second)
	now := time.Now()

	tr.Observe(TriggerEvent{Target: "tool:search", Failed: true, Timestamp: now})
	time.Sleep(30 * time.Millisecond)
	// old failing sample has slid out of the window; only this success remains
	fired := tr.Observe(TriggerEvent{Target: "tool:search", Failed: false, Timestamp: time.Now()})
	assert.False(t, fired)
}

func TestTrigger_TargetsAreIndependent(t *testing.T) {
	tr := NewTrigger("trg_failure_ratio", time.Minute, 0.5, 2, time.Minute)
	now := time.Now()

	tr.Observe(TriggerEvent{Target: "tool:a", Failed: true, Timestamp: now})
	fired := tr.Observe(TriggerEvent{Target: "tool:a", Failed: true, Timestamp: now})
	assert.True(t, fired)

	// tool:b has no history yet, so it should not be in cooldown or fire early
	assert.False(t, tr.InCooldown("tool:b"))
	assert.False(t, tr.Observe(TriggerEvent{Target: "tool:b", Failed: true, Timestamp: now}))
}
