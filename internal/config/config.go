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

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the runtime.
type Config struct {
	Governor    GovernorConfig    `mapstructure:"governor"`
	Enforcement EnforcementConfig `mapstructure:"enforcement"`
	Reflex      ReflexConfig      `mapstructure:"reflex"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Stream      StreamConfig      `mapstructure:"stream"`
	RBAC        RBACConfig        `mapstructure:"rbac"`
	Log         LogConfig         `mapstructure:"log"`
}

// GovernorConfig controls the manifest registry and activation gate (C2/C3).
type GovernorConfig struct {
	ShadowMinDurationMS         int64   `mapstructure:"shadow_min_duration_ms"`
	ActivationGateDivergenceMax float64 `mapstructure:"activation_gate_divergence_max"`
}

// EnforcementConfig holds the enforcement knobs (C4). MaxGlobalParallel
// sizes the global parallelism limiter. DefaultTimeoutMS and
// DefaultGracePeriodMS are not read by the enforcers, which fall back to
// their own built-in 30s timeout and 5s grace period when a budget leaves
// those fields unset.
type EnforcementConfig struct {
	MaxGlobalParallel    int   `mapstructure:"max_global_parallel"`
	DefaultTimeoutMS     int64 `mapstructure:"default_timeout_ms"`
	DefaultGracePeriodMS int64 `mapstructure:"default_grace_period_ms"`
}

// ReflexConfig controls trigger windows and breaker defaults (C5).
type ReflexConfig struct {
	ErrorRateWindowSeconds   int64   `mapstructure:"error_rate_window_seconds"`
	ErrorRateThreshold       float64 `mapstructure:"error_rate_threshold"`
	BudgetViolationWindowSec int64   `mapstructure:"budget_violation_window_seconds"`
	BudgetViolationBurst     int     `mapstructure:"budget_violation_burst"`
	DefaultCooldownMS        int64   `mapstructure:"default_cooldown_ms"`
	BreakerFailureThreshold  int     `mapstructure:"breaker_failure_threshold"`
	BreakerRecoveryTimeoutMS int64   `mapstructure:"breaker_recovery_timeout_ms"`
	BreakerHalfOpenMaxProbes int     `mapstructure:"breaker_half_open_max_probes"`
	ThrottleRatePerSecond    float64 `mapstructure:"throttle_rate_per_second"`
	ThrottleBurst            int     `mapstructure:"throttle_burst"`
}

// ExecutorConfig controls the orchestrator (C6).
type ExecutorConfig struct {
	PreflightTimeoutMS int64 `mapstructure:"preflight_timeout_ms"`
}

// AuditConfig controls the audit log's write discipline (C7).
type AuditConfig struct {
	Sync string `mapstructure:"sync"` // "sync" | "batch"
}

// StreamConfig controls the SSE fabric (C8).
type StreamConfig struct {
	BufferSize        int `mapstructure:"buffer_size"` // per-channel replay buffer; queue size is chosen per Subscribe call
	MaxConsecutiveDrop int `mapstructure:"max_consecutive_drop"`
}

// RBACConfig is currently empty (roles/permissions are fixed at design
// time, not configurable) but kept as its own struct so the nesting
// mirrors the component layout and future knobs have a home.
type RBACConfig struct{}

// LogConfig mirrors pkg/log.Config's shape.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration with every §6 environment knob at its
// documented default.
func Default() Config {
	return Config{
		Governor: GovernorConfig{
			ShadowMinDurationMS:         24 * 60 * 60 * 1000,
			ActivationGateDivergenceMax: 0.05,
		},
		Enforcement: EnforcementConfig{
			MaxGlobalParallel:    100,
			DefaultTimeoutMS:     30000,
			DefaultGracePeriodMS: 5000,
		},
		Reflex: ReflexConfig{
			ErrorRateWindowSeconds:   60,
			ErrorRateThreshold:       0.5,
			BudgetViolationWindowSec: 60,
			BudgetViolationBurst:     3,
			DefaultCooldownMS:        60000,
			BreakerFailureThreshold:  3,
			BreakerRecoveryTimeoutMS: 30000,
			BreakerHalfOpenMaxProbes: 1,
			ThrottleRatePerSecond:    1,
			ThrottleBurst:            1,
		},
		Executor: ExecutorConfig{
			PreflightTimeoutMS: 5000,
		},
		Audit: AuditConfig{Sync: "sync"},
		Stream: StreamConfig{
			BufferSize:         100,
			MaxConsecutiveDrop: 5,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configPath (if non-empty) over the defaults, then applies
// environment variable overrides for every §6 knob (e.g.
// NEURORAIL_ENFORCEMENT_MAX_GLOBAL_PARALLEL).
func Load(configPath string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetEnvPrefix("neurorail")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindDefaults(v, def)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// bindDefaults registers every field's default with viper by its
// mapstructure key path, so AutomaticEnv's lookups (which only consult keys
// viper already knows about) can override them.
func bindDefaults(v *viper.Viper, def Config) {
	v.SetDefault("governor.shadow_min_duration_ms", def.Governor.ShadowMinDurationMS)
	v.SetDefault("governor.activation_gate_divergence_max", def.Governor.ActivationGateDivergenceMax)

	v.SetDefault("enforcement.max_global_parallel", def.Enforcement.MaxGlobalParallel)
	v.SetDefault("enforcement.default_timeout_ms", def.Enforcement.DefaultTimeoutMS)
	v.SetDefault("enforcement.default_grace_period_ms", def.Enforcement.DefaultGracePeriodMS)

	v.SetDefault("reflex.error_rate_window_seconds", def.Reflex.ErrorRateWindowSeconds)
	v.SetDefault("reflex.error_rate_threshold", def.Reflex.ErrorRateThreshold)
	v.SetDefault("reflex.budget_violation_window_seconds", def.Reflex.BudgetViolationWindowSec)
	v.SetDefault("reflex.budget_violation_burst", def.Reflex.BudgetViolationBurst)
	v.SetDefault("reflex.default_cooldown_ms", def.Reflex.DefaultCooldownMS)
	v.SetDefault("reflex.breaker_failure_threshold", def.Reflex.BreakerFailureThreshold)
	v.SetDefault("reflex.breaker_recovery_timeout_ms", def.Reflex.BreakerRecoveryTimeoutMS)
	v.SetDefault("reflex.breaker_half_open_max_probes", def.Reflex.BreakerHalfOpenMaxProbes)
	v.SetDefault("reflex.throttle_rate_per_second", def.Reflex.ThrottleRatePerSecond)
	v.SetDefault("reflex.throttle_burst", def.Reflex.ThrottleBurst)

	v.SetDefault("executor.preflight_timeout_ms", def.Executor.PreflightTimeoutMS)

	v.SetDefault("audit.sync", def.Audit.Sync)

	v.SetDefault("stream.buffer_size", def.Stream.BufferSize)
	v.SetDefault("stream.max_consecutive_drop", def.Stream.MaxConsecutiveDrop)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}
