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

// Package runtimewire constructs the nine governed-execution-runtime
// components from a loaded Config and holds them as a single value.
package runtimewire

import (
	"time"

	"neurorail/internal/audit"
	"neurorail/internal/config"
	"neurorail/internal/enforcement"
	"neurorail/internal/execplan"
	"neurorail/internal/governor/decision"
	"neurorail/internal/governor/manifest"
	"neurorail/internal/rbac"
	"neurorail/internal/reflex"
	"neurorail/internal/stream"
	"neurorail/pkg/log"
)

// Runtime holds every governed-execution component wired together from
// Config. It is a plain value, not a server: callers embed it behind
// whatever transport they run (this module ships none, per its external
// interfaces being contract-only).
type Runtime struct {
	Config *config.Config
	Log    *log.Logger

	// C2 manifest registry, C3 decision store. The per-manifest Evaluator
	// is built on demand from the active manifest, not held here.
	Manifests *manifest.Registry
	Decisions *decision.Store

	// C4 budget enforcers.
	Guards *enforcement.Guards

	// C5 reflex system: lifecycle registry, circuit breakers, action
	// dispatch. Triggers are created per-target by callers as conditions
	// warrant (a fixed set can't be enumerated at wiring time).
	Lifecycles *reflex.Registry
	Breakers   *reflex.Breakers
	Actions    *reflex.ActionDispatcher

	// C6 executor orchestrator. Executors register themselves at startup
	// via Orchestrator.RegisterExecutor; none ship in this module.
	Orchestrator *execplan.Orchestrator

	// C7 audit log.
	Audit *audit.Log

	// C8 SSE fabric.
	Stream *stream.Publisher

	// C9 RBAC.
	Authorizer *rbac.Authorizer
}

// New constructs every component from cfg. logger is used both directly
// and wherever a component accepts one (decision evaluation, rbac
// denials).
func New(cfg *config.Config, logger *log.Logger) (*Runtime, error) {
	parallelism := enforcement.NewParallelismLimiter(cfg.Enforcement.MaxGlobalParallel)
	guards := enforcement.NewGuards(parallelism)

	breakerCfg := reflex.BreakerConfig{
		MaxConsecutiveFailures: uint32(cfg.Reflex.BreakerFailureThreshold),
		OpenTimeout:            time.Duration(cfg.Reflex.BreakerRecoveryTimeoutMS) * time.Millisecond,
		HalfOpenMaxRequests:    uint32(cfg.Reflex.BreakerHalfOpenMaxProbes),
	}

	lifecycles := reflex.NewRegistry()

	preflight := execplan.NewPreflightChecker("", 0, nil, nil, nil)

	rt := &Runtime{
		Config:       cfg,
		Log:          logger,
		Manifests:    manifest.NewRegistry(),
		Decisions:    decision.NewStore(),
		Guards:       guards,
		Lifecycles:   lifecycles,
		Breakers:     reflex.NewBreakers(breakerCfg),
		Actions:      reflex.NewActionDispatcher(lifecycles, nil),
		Orchestrator: execplan.NewOrchestrator(preflight, guards),
		Audit:        audit.NewLog(nil),
		Stream:       stream.NewPublisherWithLimits(cfg.Stream.BufferSize, cfg.Stream.MaxConsecutiveDrop),
		Authorizer:   rbac.NewAuthorizer(logger),
	}

	return rt, nil
}

// NewEvaluator builds a decision Evaluator bound to the currently active
// manifest. Returns false if no manifest has been activated yet.
func (rt *Runtime) NewEvaluator() (*decision.Evaluator, bool) {
	active, ok := rt.Manifests.GetActive()
	if !ok {
		return nil, false
	}
	return decision.NewEvaluator(active, rt.Log), true
}
