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

// Package stream is the process-wide SSE event fabric (C8): channel-based
// fan-out, per-channel replay buffers, and dead-subscriber cleanup.
package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Channel is one SSE routing lane. Publishing to any non-ALL channel also
// notifies ALL subscribers.
type Channel string

const (
	ChannelAudit       Channel = "audit"
	ChannelLifecycle   Channel = "lifecycle"
	ChannelMetrics     Channel = "metrics"
	ChannelReflex      Channel = "reflex"
	ChannelGovernor    Channel = "governor"
	ChannelEnforcement Channel = "enforcement"
	ChannelAll         Channel = "all"
)

// AllChannels lists every routable channel, ALL included, used to seed
// per-channel subscriber lists and buffers.
var AllChannels = []Channel{ChannelAudit, ChannelLifecycle, ChannelMetrics, ChannelReflex, ChannelGovernor, ChannelEnforcement, ChannelAll}

// Event is one SSE message.
type Event struct {
	Channel   Channel
	EventType string
	Data      map[string]any
	Timestamp time.Time
	EventID   string
}

// Encode renders e in SSE wire format:
// "id: <event_id>\nevent: <event_type>\ndata: <json>\n\n".
func (e Event) Encode() (string, error) {
	payload := struct {
		Channel   Channel        `json:"channel"`
		EventType string         `json:"event_type"`
		Timestamp time.Time      `json:"timestamp"`
		Data      map[string]any `json:"data"`
	}{Channel: e.Channel, EventType: e.EventType, Timestamp: e.Timestamp, Data: e.Data}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	out := ""
	if e.EventID != "" {
		out += fmt.Sprintf("id: %s\n", e.EventID)
	}
	out += fmt.Sprintf("event: %s\n", e.EventType)
	out += fmt.Sprintf("data: %s\n\n", b)
	return out, nil
}

// SubscriptionFilter narrows which published events reach one subscriber.
type SubscriptionFilter struct {
	Channels   []Channel
	EventTypes []string // empty = any
	EntityIDs  []string // empty = any; matched against mission_id/plan_id/job_id/attempt_id in Data
}

// Matches reports whether ev passes f. A nil/empty Channels defaults to
// ChannelAll only if the caller set it that way at Subscribe time — here
// Matches trusts the filter as given.
func (f SubscriptionFilter) Matches(ev Event) bool {
	if !f.hasChannel(ChannelAll) && !f.hasChannel(ev.Channel) {
		return false
	}

	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if t == ev.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.EntityIDs) > 0 {
		candidates := []string{"mission_id", "plan_id", "job_id", "attempt_id"}
		matched := false
		for _, field := range candidates {
			v, ok := ev.Data[field].(string)
			if !ok || v == "" {
				continue
			}
			for _, id := range f.EntityIDs {
				if v == id {
					matched = true
				}
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

func (f SubscriptionFilter) hasChannel(c Channel) bool {
	for _, ch := range f.Channels {
		if ch == c {
			return true
		}
	}
	return false
}
