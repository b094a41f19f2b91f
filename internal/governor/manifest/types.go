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

// Package manifest is the versioned, hash-chained governance manifest
// registry (C2).
package manifest

import "time"

// Mode is the execution mode a rule or default resolves to.
type Mode string

const (
	ModeDirect Mode = "DIRECT"
	ModeRail   Mode = "RAIL"
)

// RecoveryStrategy is the recovery behavior a rule or risk class prescribes.
type RecoveryStrategy string

const (
	RecoveryRetry         RecoveryStrategy = "RETRY"
	RecoveryManualConfirm RecoveryStrategy = "MANUAL_CONFIRM"
	RecoveryFallback      RecoveryStrategy = "FALLBACK"
	RecoverySkip          RecoveryStrategy = "SKIP"
)

// Budget is the tuple of resource limits enforced around a job attempt.
// Every field is optional; enforcers apply their own default when unset.
type Budget struct {
	TimeoutMS           *int64   `json:"timeout_ms,omitempty"`
	MaxRetries          *int     `json:"max_retries,omitempty"`
	MaxParallelAttempts *int     `json:"max_parallel_attempts,omitempty"`
	MaxGlobalParallel   *int     `json:"max_global_parallel,omitempty"`
	MaxLLMTokens        *int64   `json:"max_llm_tokens,omitempty"`
	MaxCostCredits      *float64 `json:"max_cost_credits,omitempty"`
	GracePeriodMS       *int64   `json:"grace_period_ms,omitempty"`
}

// WithMultiplier returns a copy of b with timeout_ms, max_parallel_attempts,
// max_global_parallel, max_llm_tokens, and max_cost_credits scaled by mult.
// max_retries and grace_period_ms are never multiplied: retry counts and
// grace windows are fixed operational guarantees, not resource budgets.
func (b Budget) WithMultiplier(mult float64) Budget {
	out := b
	if b.TimeoutMS != nil {
		v := int64(float64(*b.TimeoutMS) * mult)
		out.TimeoutMS = &v
	}
	if b.MaxParallelAttempts != nil {
		v := int(float64(*b.MaxParallelAttempts) * mult)
		out.MaxParallelAttempts = &v
	}
	if b.MaxGlobalParallel != nil {
		v := int(float64(*b.MaxGlobalParallel) * mult)
		out.MaxGlobalParallel = &v
	}
	if b.MaxLLMTokens != nil {
		v := int64(float64(*b.MaxLLMTokens) * mult)
		out.MaxLLMTokens = &v
	}
	if b.MaxCostCredits != nil {
		v := *b.MaxCostCredits * mult
		out.MaxCostCredits = &v
	}
	return out
}

// RiskClass is a named multiplier plus a default recovery strategy.
type RiskClass struct {
	BudgetMultiplier float64          `json:"budget_multiplier"`
	RecoveryStrategy RecoveryStrategy `json:"recovery_strategy,omitempty"`
}

// RuleCondition is either a direct field-equality map, an any[] (OR), or an
// all[] (AND). Nesting is allowed.
type RuleCondition struct {
	Any    []RuleCondition `json:"-"`
	All    []RuleCondition `json:"-"`
	Fields map[string]any  `json:"-"`
}

// ManifestRule is one entry of a manifest's governance rule set.
type ManifestRule struct {
	RuleID          string           `json:"rule_id"`
	Priority        int              `json:"priority"` // lower = higher precedence
	Enabled         bool             `json:"enabled"`
	When            RuleCondition    `json:"when"`
	Mode            Mode             `json:"mode"`
	BudgetOverride  *Budget          `json:"budget_override,omitempty"`
	RecoveryStrategy RecoveryStrategy `json:"recovery_strategy,omitempty"`
	Reason          string           `json:"reason,omitempty"`
}

// Manifest is a versioned, hash-chained governance rule set.
type Manifest struct {
	ManifestID    string               `json:"manifest_id"`
	Version       string               `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	HashPrev      string               `json:"hash_prev,omitempty"`
	HashSelf      string               `json:"hash_self,omitempty"`
	EffectiveAt   *time.Time           `json:"effective_at,omitempty"`
	ShadowMode    bool                 `json:"shadow_mode"`
	ShadowStart   *time.Time           `json:"shadow_start,omitempty"`
	Rules         []ManifestRule       `json:"rules"`
	BudgetDefaults Budget              `json:"budget_defaults"`
	RiskClasses   map[string]RiskClass `json:"risk_classes"`
	JobOverrides  map[string]Budget    `json:"job_overrides,omitempty"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
}

// ActivationGateConfig configures the shadow-to-active activation gate.
type ActivationGateConfig struct {
	MinShadowDuration  time.Duration
	MaxDivergencePct   float64
}

// DefaultActivationGateConfig mirrors §4.2's documented defaults.
func DefaultActivationGateConfig() ActivationGateConfig {
	return ActivationGateConfig{
		MinShadowDuration: 24 * time.Hour,
		MaxDivergencePct:  0.05,
	}
}

// ShadowReport summarizes a shadow manifest's divergence from the active
// one, used by Activate's gate (supplemented feature, §13.4 SPEC_FULL.md).
type ShadowReport struct {
	SafeToActivate        bool
	ActivationGateReason  string
	JobsEvaluated         int
	JobsDiverged          int
	CriticalDivergenceJobTypes []string
}
