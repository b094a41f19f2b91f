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

// Package metrics exposes the Prometheus instruments used across the
// enforcement, reflex, and stream components. Exporting them over HTTP is
// the out-of-scope transport layer; this package only instruments.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry is the process-wide registry every instrument below is
// registered against.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TimeoutTotal, GracePeriodInvokedTotal,
		CostViolationsTotal,
		ParallelismRejectedTotal, ParallelismActiveGauge,
		RetryAttemptsTotal, RetryExhaustedTotal,
		CircuitBreakerStateGauge, CircuitBreakerTripsTotal,
		LifecycleTransitionsTotal, ReflexTriggersTotal, ReflexActionsTotal,
		ExecutorStepDuration, ExecutorRollbackTotal,
		AuditWriteFailuresTotal,
		StreamSubscribersGauge, StreamEventsPublishedTotal, StreamDroppedEventsTotal,
		RBACDenialsTotal,
	)
}

// --- C4 enforcement ---

var TimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "neurorail_timeout_total",
	Help: "attempts that exceeded their timeout budget",
})

var GracePeriodInvokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "neurorail_grace_period_invoked_total",
	Help: "cleanup handlers invoked after a timeout",
})

var CostViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_cost_violations_total",
	Help: "budget-cost violations by resource type",
}, []string{"resource_type"})

var ParallelismRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_parallelism_rejected_total",
	Help: "attempts rejected for saturated parallelism limits",
}, []string{"limit_type"})

var ParallelismActiveGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "neurorail_parallelism_active",
	Help: "currently held parallelism slots",
}, []string{"limit_type"})

var RetryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_retry_attempts_total",
	Help: "retry attempts issued by the RetryHandler",
}, []string{"job_type"})

var RetryExhaustedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_retry_exhausted_total",
	Help: "attempts that exhausted all retries",
}, []string{"job_type"})

// --- C5 reflex ---

var CircuitBreakerStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "neurorail_circuit_breaker_state",
	Help: "breaker state per target (0=closed,1=half_open,2=open)",
}, []string{"target"})

var CircuitBreakerTripsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_circuit_breaker_trips_total",
	Help: "breaker CLOSED/HALF_OPEN -> OPEN transitions",
}, []string{"target"})

var LifecycleTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_lifecycle_transitions_total",
	Help: "job lifecycle transitions",
}, []string{"from", "to", "triggered_by"})

var ReflexTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_reflex_triggers_total",
	Help: "sliding-window trigger breaches",
}, []string{"trigger_id"})

var ReflexActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_reflex_actions_total",
	Help: "reflex actions dispatched",
}, []string{"type", "result"})

// --- C6 executor ---

var ExecutorStepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "neurorail_executor_step_duration_seconds",
	Help:    "step execution duration",
	Buckets: prometheus.DefBuckets,
}, []string{"executor_type", "ok"})

var ExecutorRollbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_executor_rollback_total",
	Help: "rollback invocations by outcome",
}, []string{"outcome"})

// --- C7 audit ---

var AuditWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "neurorail_audit_write_failures_total",
	Help: "failed audit log writes (critical)",
})

// --- C8 stream ---

var StreamSubscribersGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "neurorail_stream_subscribers",
	Help: "current subscriber count per channel",
}, []string{"channel"})

var StreamEventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_stream_events_published_total",
	Help: "events published per channel",
}, []string{"channel"})

var StreamDroppedEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_stream_dropped_events_total",
	Help: "events dropped due to a full subscriber queue",
}, []string{"channel"})

// --- C9 rbac ---

var RBACDenialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "neurorail_rbac_denials_total",
	Help: "authorize() calls that denied access",
}, []string{"role"})

// WritePrometheus writes the registry in Prometheus text exposition format.
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
