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

// Package enforcement implements the composable budget guards (C4):
// timeout, cost, parallelism, and retry.
package enforcement

import (
	"context"
	"sync/atomic"
	"time"

	"neurorail/internal/governor/manifest"
	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
)

const (
	defaultTimeoutMS = int64(30000)
	defaultGraceMS   = int64(5000)
)

// TimeoutEnforcer enforces a hard wall-clock budget on a task, optionally
// running a cleanup handler during a grace period after expiry.
type TimeoutEnforcer struct {
	timeoutCount            atomic.Int64
	gracePeriodInvokedCount atomic.Int64
}

// NewTimeoutEnforcer builds a TimeoutEnforcer with zeroed metrics.
func NewTimeoutEnforcer() *TimeoutEnforcer {
	return &TimeoutEnforcer{}
}

// Enforce runs task under budget's timeout_ms (default 30s), returning
// EXEC_TIMEOUT if it does not complete in time.
func (e *TimeoutEnforcer) Enforce(ctx context.Context, budget manifest.Budget, task func(context.Context) (any, error)) (any, error) {
	timeoutMS := defaultTimeoutMS
	if budget.TimeoutMS != nil {
		timeoutMS = *budget.TimeoutMS
	}

	cctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := task(cctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-cctx.Done():
		e.timeoutCount.Add(1)
		metrics.TimeoutTotal.Inc()
		return nil, nrerrors.New(nrerrors.ExecTimeout, "execution exceeded timeout budget", map[string]any{"timeout_ms": timeoutMS})
	}
}

// EnforceWithGracePeriod behaves like Enforce, but on timeout runs
// cleanupHandler under budget's grace_period_ms (default 5s) before
// returning EXEC_TIMEOUT either way.
func (e *TimeoutEnforcer) EnforceWithGracePeriod(ctx context.Context, budget manifest.Budget, task func(context.Context) (any, error), cleanupHandler func(context.Context) error) (any, error) {
	timeoutMS := defaultTimeoutMS
	if budget.TimeoutMS != nil {
		timeoutMS = *budget.TimeoutMS
	}
	graceMS := defaultGraceMS
	if budget.GracePeriodMS != nil {
		graceMS = *budget.GracePeriodMS
	}

	cctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := task(cctx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-cctx.Done():
	}

	e.gracePeriodInvokedCount.Add(1)
	metrics.GracePeriodInvokedTotal.Inc()

	if cleanupHandler != nil {
		graceCtx, graceCancel := context.WithTimeout(context.Background(), time.Duration(graceMS)*time.Millisecond)
		_ = cleanupHandler(graceCtx)
		graceCancel()
	}

	e.timeoutCount.Add(1)
	metrics.TimeoutTotal.Inc()
	return nil, nrerrors.New(nrerrors.ExecTimeout, "execution exceeded timeout budget", map[string]any{
		"timeout_ms":            timeoutMS,
		"grace_period_ms":       graceMS,
		"grace_period_invoked":  true,
	})
}

// TimeoutMetrics is the enforcer's own counters, independent of the
// package-wide Prometheus registry.
type TimeoutMetrics struct {
	TimeoutCount            int64
	GracePeriodInvokedCount int64
}

// GetMetrics snapshots the enforcer's counters.
func (e *TimeoutEnforcer) GetMetrics() TimeoutMetrics {
	return TimeoutMetrics{
		TimeoutCount:            e.timeoutCount.Load(),
		GracePeriodInvokedCount: e.gracePeriodInvokedCount.Load(),
	}
}

// ResetMetrics zeroes the enforcer's own counters.
func (e *TimeoutEnforcer) ResetMetrics() {
	e.timeoutCount.Store(0)
	e.gracePeriodInvokedCount.Store(0)
}
