// Copyright 2026 fanjia1024
// Tests for the SSE publisher

package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_DeliversToMatchingChannelOnly(t *testing.T) {
	p := NewPublisher()
	lifecycleSub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelLifecycle}}, 10, false)
	reflexSub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelReflex}}, 10, false)

	p.Publish(Event{Channel: ChannelLifecycle, EventType: "job_started", Data: map[string]any{}})

	select {
	case ev := <-lifecycleSub.Events:
		assert.Equal(t, "job_started", ev.EventType)
	default:
		t.Fatal("expected lifecycle subscriber to receive event")
	}

	select {
	case <-reflexSub.Events:
		t.Fatal("reflex subscriber should not receive a lifecycle event")
	default:
	}
}

func TestPublisher_AllSubscribersReceiveEveryChannel(t *testing.T) {
	p := NewPublisher()
	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelAll}}, 10, false)

	p.Publish(Event{Channel: ChannelAudit, EventType: "a", Data: map[string]any{}})
	p.Publish(Event{Channel: ChannelReflex, EventType: "b", Data: map[string]any{}})

	require.Len(t, sub.Events, 2)
}

func TestPublisher_SubscribeReplaysBufferedEvents(t *testing.T) {
	p := NewPublisher()
	p.Publish(Event{Channel: ChannelAudit, EventType: "old", Data: map[string]any{}})

	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelAudit}}, 10, true)

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "old", ev.EventType)
	default:
		t.Fatal("expected replayed event on subscribe")
	}
}

func TestPublisher_SubscribeWithoutReplayGetsNothingPastEvents(t *testing.T) {
	p := NewPublisher()
	p.Publish(Event{Channel: ChannelAudit, EventType: "old", Data: map[string]any{}})

	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelAudit}}, 10, false)

	select {
	case <-sub.Events:
		t.Fatal("expected no replay when replayBuffer=false")
	default:
	}
}

func TestPublisher_BufferIsTrimmedToConfiguredSize(t *testing.T) {
	p := NewPublisherWithLimits(3, defaultMaxConsecutiveDrops)
	for i := 0; i < 5; i++ {
		p.Publish(Event{Channel: ChannelAudit, EventType: "e", Data: map[string]any{}})
	}
	stats := p.GetStats()
	assert.Equal(t, 3, stats.BufferSizeByChannel[ChannelAudit])
}

func TestPublisher_FilterNarrowsByEventType(t *testing.T) {
	p := NewPublisher()
	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelReflex}, EventTypes: []string{"throttle_triggered"}}, 10, false)

	p.Publish(Event{Channel: ChannelReflex, EventType: "alert_raised", Data: map[string]any{}})
	p.Publish(Event{Channel: ChannelReflex, EventType: "throttle_triggered", Data: map[string]any{}})

	require.Len(t, sub.Events, 1)
	ev := <-sub.Events
	assert.Equal(t, "throttle_triggered", ev.EventType)
}

func TestPublisher_FilterNarrowsByEntityID(t *testing.T) {
	p := NewPublisher()
	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelLifecycle}, EntityIDs: []string{"job_42"}}, 10, false)

	p.Publish(Event{Channel: ChannelLifecycle, EventType: "job_started", Data: map[string]any{"job_id": "job_99"}})
	p.Publish(Event{Channel: ChannelLifecycle, EventType: "job_started", Data: map[string]any{"job_id": "job_42"}})

	require.Len(t, sub.Events, 1)
	ev := <-sub.Events
	assert.Equal(t, "job_42", ev.Data["job_id"])
}

func TestPublisher_NonBlockingPublishUnderFullQueue(t *testing.T) {
	p := NewPublisher()
	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelAudit}}, 1, false)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Publish(Event{Channel: ChannelAudit, EventType: "e", Data: map[string]any{}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}
	_ = sub
}

func TestPublisher_RemovesSubscriberAfterConsecutiveDrops(t *testing.T) {
	p := NewPublisherWithLimits(defaultBufferSize, 3)
	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelAudit}}, 1, false)

	// first publish fills the queue (capacity 1); the next 3 are drops.
	p.Publish(Event{Channel: ChannelAudit, EventType: "fill", Data: map[string]any{}})
	for i := 0; i < 3; i++ {
		p.Publish(Event{Channel: ChannelAudit, EventType: "drop", Data: map[string]any{}})
	}

	stats := p.GetStats()
	assert.Equal(t, 0, stats.SubscribersByChannel[ChannelAudit], "subscriber should have been evicted after consecutive drops")

	_, open := <-sub.Events
	// queue may still hold the one buffered "fill" event; drain it, then
	// confirm the channel is closed.
	if open {
		_, open = <-sub.Events
	}
	assert.False(t, open, "evicted subscriber's queue should be closed")
}

func TestPublisher_CloseUnsubscribes(t *testing.T) {
	p := NewPublisher()
	sub := p.Subscribe(SubscriptionFilter{Channels: []Channel{ChannelAudit}}, 10, false)
	sub.Close()

	stats := p.GetStats()
	assert.Equal(t, 0, stats.SubscribersByChannel[ChannelAudit])
}
