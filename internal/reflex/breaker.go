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

	"github.com/sony/gobreaker"

	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
)

// CircuitState mirrors gobreaker's three states under our own names, so
// callers never import gobreaker directly.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitHalfOpen
	CircuitOpen
)

func fromGobreakerState(s gobreaker.State) CircuitState {
	switch s {
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	case gobreaker.StateOpen:
		return CircuitOpen
	default:
		return CircuitClosed
	}
}

func (s CircuitState) gaugeValue() float64 {
	switch s {
	case CircuitHalfOpen:
		return 1
	case CircuitOpen:
		return 2
	default:
		return 0
	}
}

// BreakerConfig configures one target's circuit breaker.
type BreakerConfig struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
	HalfOpenMaxRequests    uint32
}

// DefaultBreakerConfig returns a sensible breaker profile.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxConsecutiveFailures: 5, OpenTimeout: 30 * time.Second, HalfOpenMaxRequests: 3}
}

// Breakers is a per-target registry of circuit breakers, built lazily.
type Breakers struct {
	mu   sync.Mutex
	cfg  BreakerConfig
	byID map[string]*gobreaker.CircuitBreaker
}

// NewBreakers builds a Breakers registry using cfg for every target.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, byID: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *Breakers) get(target string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.byID[target]
	if ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        target,
		MaxRequests: b.cfg.HalfOpenMaxRequests,
		Timeout:     b.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.cfg.MaxConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerStateGauge.WithLabelValues(name).Set(fromGobreakerState(to).gaugeValue())
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTripsTotal.WithLabelValues(name).Inc()
			}
		},
	}
	cb = gobreaker.NewCircuitBreaker(settings)
	b.byID[target] = cb
	return cb
}

// Execute runs fn through target's breaker. Returns CIRCUIT_BREAKER_OPEN
// without calling fn if the breaker is open or half-open-saturated.
func (b *Breakers) Execute(target string, fn func() (any, error)) (any, error) {
	cb := b.get(target)
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, nrerrors.New(nrerrors.CircuitBreakerOpen, "circuit breaker open", map[string]any{"target": target})
	}
	return result, err
}

// State returns target's current breaker state.
func (b *Breakers) State(target string) CircuitState {
	return fromGobreakerState(b.get(target).State())
}
