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

// Package errors is the shared error taxonomy, not dependent on internal.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies why an error occurred, driving retry policy.
type Category string

const (
	Mechanical Category = "mechanical" // transient, may be retried
	Ethical    Category = "ethical"    // policy/safety denial, never retried
	System     Category = "system"    // infrastructure fault
)

// Severity is the log level an error's metadata implies.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	ExecTimeout               Code = "EXEC_TIMEOUT"
	ExecOverbudget            Code = "EXEC_OVERBUDGET"
	BudgetCostExceeded        Code = "BUDGET_COST_EXCEEDED"
	BudgetParallelismExceeded Code = "BUDGET_PARALLELISM_EXCEEDED"
	RetryExhausted            Code = "RETRY_EXHAUSTED"
	UpstreamUnavailable       Code = "UPSTREAM_UNAVAILABLE"
	BadResponseFormat         Code = "BAD_RESPONSE_FORMAT"
	PolicyReflexCooldown      Code = "POLICY_REFLEX_COOLDOWN"
	OrphanKilled              Code = "ORPHAN_KILLED"
	CircuitBreakerOpen        Code = "CIRCUIT_BREAKER_OPEN"
	ReflexLifecycleInvalid    Code = "REFLEX_LIFECYCLE_INVALID"
	ReflexActionFailed        Code = "REFLEX_ACTION_FAILED"
	ManifestNotFound          Code = "MANIFEST_NOT_FOUND"
	ManifestHashMismatch      Code = "MANIFEST_HASH_MISMATCH"
	ManifestInvalidSchema     Code = "MANIFEST_INVALID_SCHEMA"
	ActivationGateBlocked     Code = "ACTIVATION_GATE_BLOCKED"
	AuditLogFailure           Code = "AUDIT_LOG_FAILURE"
	TelemetryFailure          Code = "TELEMETRY_FAILURE"
	MissingTraceContext       Code = "MISSING_TRACE_CONTEXT"
)

// Meta is the fixed classification for a Code.
type Meta struct {
	Category  Category
	Severity  Severity
	Retriable bool
	Message   string
}

// Metadata is the full code → classification table.
var Metadata = map[Code]Meta{
	ExecTimeout:               {Mechanical, SeverityWarning, false, "execution exceeded timeout budget"},
	ExecOverbudget:            {Mechanical, SeverityWarning, false, "execution exceeded resource budget"},
	BudgetCostExceeded:        {Mechanical, SeverityError, false, "cost budget exceeded"},
	BudgetParallelismExceeded: {Mechanical, SeverityWarning, true, "parallelism semaphore full"},
	RetryExhausted:            {Mechanical, SeverityError, false, "all retry attempts exhausted"},
	UpstreamUnavailable:       {Mechanical, SeverityWarning, true, "upstream service unavailable"},
	BadResponseFormat:         {Mechanical, SeverityWarning, true, "upstream returned malformed response"},
	PolicyReflexCooldown:      {Mechanical, SeverityInfo, true, "blocked by reflex cooldown"},
	OrphanKilled:              {Mechanical, SeverityError, false, "job killed: missing parent in trace chain"},
	CircuitBreakerOpen:        {System, SeverityWarning, true, "circuit breaker open"},
	ReflexLifecycleInvalid:    {System, SeverityError, false, "illegal lifecycle transition"},
	ReflexActionFailed:        {System, SeverityError, false, "reflex action could not be applied"},
	ManifestNotFound:          {System, SeverityError, false, "manifest not found"},
	ManifestHashMismatch:      {System, SeverityError, false, "manifest hash chain mismatch"},
	ManifestInvalidSchema:     {System, SeverityError, false, "manifest failed schema validation"},
	ActivationGateBlocked:     {System, SeverityError, false, "shadow activation gate refused activation"},
	AuditLogFailure:           {System, SeverityCritical, false, "failed to write audit log"},
	TelemetryFailure:          {System, SeverityWarning, false, "failed to record telemetry"},
	MissingTraceContext:       {System, SeverityError, false, "required trace context missing"},
}

// Error is the concrete error type carrying a Code and structured Details.
type Error struct {
	Code    Code
	Details map[string]any
	cause   error
	message string
}

func (e *Error) Error() string {
	if e.message != "" {
		return e.message
	}
	return string(e.Code) + ": " + Metadata[e.Code].Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, sentinel) match on Code rather than identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Category returns the fixed category for e's code.
func (e *Error) Category() Category { return Metadata[e.Code].Category }

// Severity returns the fixed severity for e's code.
func (e *Error) Severity() Severity { return Metadata[e.Code].Severity }

// Retriable reports whether e's code is retriable per the taxonomy.
func (e *Error) Retriable() bool { return Metadata[e.Code].Retriable }

// New builds an Error for code with an optional message override and details.
func New(code Code, message string, details map[string]any) *Error {
	return &Error{Code: code, message: message, Details: details}
}

// Wrap attaches cause to a new Error for code.
func Wrap(code Code, cause error, message string, details map[string]any) *Error {
	return &Error{Code: code, cause: cause, message: message, Details: details}
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsRetriable reports whether err is an *Error whose code is retriable.
func IsRetriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retriable()
	}
	return false
}

// CategoryOf returns the category of err, or System if err is not an *Error.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category()
	}
	return System
}

// Sentinel errors for terminal cases callers commonly check with errors.Is.
var (
	ErrOrphan          = New(OrphanKilled, "", nil)
	ErrRetryExhausted  = New(RetryExhausted, "", nil)
	ErrManifestMissing = New(ManifestNotFound, "", nil)
)

// Wrapf wraps err with a formatted message, preserving it as the cause.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
