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

package stream

import (
	"sync"

	"github.com/google/uuid"

	"neurorail/internal/metrics"
)

const (
	defaultBufferSize          = 100
	defaultQueueSize           = 100
	defaultMaxConsecutiveDrops = 5
)

type subscriber struct {
	id               string
	queue            chan Event
	filter           SubscriptionFilter
	consecutiveDrops int
}

// Subscription is a live handle returned by Publisher.Subscribe. Events
// arrives filtered events; Close unsubscribes from every channel the
// subscription was registered on.
type Subscription struct {
	ID     string
	Events <-chan Event
	Close  func()
}

// Publisher is the process-wide, channel-based SSE fan-out hub. Publish
// never blocks: a subscriber whose queue is full has the event dropped for
// it, and after maxConsecutiveDrops straight drops the subscriber is
// removed entirely ("dead subscriber" cleanup).
type Publisher struct {
	mu                   sync.Mutex
	bufferSize           int
	maxConsecutiveDrops  int
	subscribers          map[Channel]map[string]*subscriber
	buffers              map[Channel][]Event
}

// NewPublisher builds a Publisher with the default per-channel replay
// buffer size (100) and drop tolerance (5 consecutive).
func NewPublisher() *Publisher {
	return NewPublisherWithLimits(defaultBufferSize, defaultMaxConsecutiveDrops)
}

// NewPublisherWithLimits builds a Publisher with explicit tuning.
func NewPublisherWithLimits(bufferSize, maxConsecutiveDrops int) *Publisher {
	p := &Publisher{
		bufferSize:          bufferSize,
		maxConsecutiveDrops: maxConsecutiveDrops,
		subscribers:         make(map[Channel]map[string]*subscriber),
		buffers:             make(map[Channel][]Event),
	}
	for _, c := range AllChannels {
		p.subscribers[c] = make(map[string]*subscriber)
		p.buffers[c] = nil
	}
	return p
}

// Publish fans ev out to every subscriber of ev.Channel, then (unless
// ev.Channel is already ALL) to every subscriber of ALL. ev is buffered
// per-channel for replay to future subscribers.
func (p *Publisher) Publish(ev Event) {
	if ev.EventID == "" {
		ev.EventID = "sse_" + uuid.New().String()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.bufferLocked(ev.Channel, ev)
	p.deliverLocked(ev.Channel, ev)
	if ev.Channel != ChannelAll {
		p.deliverLocked(ChannelAll, ev)
	}

	metrics.StreamEventsPublishedTotal.WithLabelValues(string(ev.Channel)).Inc()
}

func (p *Publisher) bufferLocked(channel Channel, ev Event) {
	buf := append(p.buffers[channel], ev)
	if len(buf) > p.bufferSize {
		buf = buf[len(buf)-p.bufferSize:]
	}
	p.buffers[channel] = buf
}

func (p *Publisher) deliverLocked(channel Channel, ev Event) {
	var dead []string
	for id, sub := range p.subscribers[channel] {
		if !sub.filter.Matches(ev) {
			continue
		}
		select {
		case sub.queue <- ev:
			sub.consecutiveDrops = 0
		default:
			sub.consecutiveDrops++
			metrics.StreamDroppedEventsTotal.WithLabelValues(string(channel)).Inc()
			if sub.consecutiveDrops >= p.maxConsecutiveDrops {
				dead = append(dead, id)
			}
		}
	}
	for _, id := range dead {
		p.removeSubscriberLocked(id)
	}
}

// Subscribe registers a new subscriber matching filter, replaying each
// relevant channel's buffered events (newest-last) before returning.
func (p *Publisher) Subscribe(filter SubscriptionFilter, queueSize int, replayBuffer bool) Subscription {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if len(filter.Channels) == 0 {
		filter.Channels = []Channel{ChannelAll}
	}

	sub := &subscriber{id: uuid.New().String(), queue: make(chan Event, queueSize), filter: filter}

	p.mu.Lock()
	for _, c := range filter.Channels {
		p.subscribers[c][sub.id] = sub
	}
	if replayBuffer {
		for _, c := range filter.Channels {
			for _, ev := range p.buffers[c] {
				if !sub.filter.Matches(ev) {
					continue
				}
				select {
				case sub.queue <- ev:
				default:
				}
			}
		}
	}
	metrics.StreamSubscribersGauge.WithLabelValues(string(filter.Channels[0])).Inc()
	p.mu.Unlock()

	return Subscription{
		ID:     sub.id,
		Events: sub.queue,
		Close:  func() { p.unsubscribe(sub.id, filter.Channels) },
	}
}

func (p *Publisher) unsubscribe(id string, channels []Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeFromChannelsLocked(id, channels)
}

// removeSubscriberLocked removes id from every channel (used for
// dead-subscriber cleanup, where the caller doesn't track the original
// channel list).
func (p *Publisher) removeSubscriberLocked(id string) {
	p.removeFromChannelsLocked(id, AllChannels)
}

func (p *Publisher) removeFromChannelsLocked(id string, channels []Channel) {
	var sub *subscriber
	for _, c := range channels {
		if s, ok := p.subscribers[c][id]; ok {
			sub = s
		}
		delete(p.subscribers[c], id)
	}
	if sub != nil {
		metrics.StreamSubscribersGauge.WithLabelValues(string(channels[0])).Dec()
		close(sub.queue)
	}
}

// Stats is a point-in-time snapshot of publisher activity.
type Stats struct {
	SubscribersByChannel map[Channel]int
	BufferSizeByChannel  map[Channel]int
}

// GetStats snapshots subscriber counts and buffer depths per channel.
func (p *Publisher) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{SubscribersByChannel: make(map[Channel]int), BufferSizeByChannel: make(map[Channel]int)}
	for c, subs := range p.subscribers {
		s.SubscribersByChannel[c] = len(subs)
	}
	for c, buf := range p.buffers {
		s.BufferSizeByChannel[c] = len(buf)
	}
	return s
}
