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

package decision

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"neurorail/internal/governor/manifest"
	"neurorail/pkg/log"
)

// Evaluator applies one manifest's rules to job contexts deterministically:
// same manifest + same context always yields the same decision.
type Evaluator struct {
	manifest    manifest.Manifest
	sortedRules []manifest.ManifestRule
	log         *log.Logger
}

// NewEvaluator builds an Evaluator bound to m, pre-sorting rules by priority
// (ascending; lower number wins).
func NewEvaluator(m manifest.Manifest, logger *log.Logger) *Evaluator {
	rules := make([]manifest.ManifestRule, len(m.Rules))
	copy(rules, m.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
	return &Evaluator{manifest: m, sortedRules: rules, log: logger}
}

// Evaluate runs the full decision pipeline against ctx and returns an
// immutable GovernorDecision. shadowMode marks the decision as one computed
// for comparison rather than for live enforcement.
func (e *Evaluator) Evaluate(ctx DecisionContext, shadowMode bool) (GovernorDecision, error) {
	matchedRule, matchedRuleIDs := e.findMatchingRule(ctx)

	var mode manifest.Mode
	var recovery manifest.RecoveryStrategy
	var reason string

	if matchedRule != nil {
		mode = matchedRule.Mode
		recovery = matchedRule.RecoveryStrategy
		if recovery == "" {
			recovery = e.riskClassRecovery(ctx.RiskClass)
		}
		if recovery == "" {
			recovery = manifest.RecoveryRetry
		}
		reason = matchedRule.Reason
	} else {
		mode = manifest.ModeDirect
		recovery = manifest.RecoveryRetry
		reason = "no matching rule - using manifest defaults"
	}

	budgetRes, err := e.resolveBudget(ctx, matchedRule)
	if err != nil {
		return GovernorDecision{}, err
	}

	immuneAlert := e.shouldAlertImmune(mode, recovery, ctx)

	decision := GovernorDecision{
		DecisionID:       "dec_" + uuid.New().String(),
		Timestamp:        time.Now(),
		MissionID:        ctx.MissionID,
		PlanID:           ctx.PlanID,
		JobID:            ctx.JobID,
		JobType:          ctx.JobType,
		Mode:             mode,
		BudgetResolution: budgetRes,
		RecoveryStrategy: recovery,
		ManifestID:       e.manifest.ManifestID,
		ManifestVersion:  e.manifest.Version,
		TriggeredRules:   matchedRuleIDs,
		Reason:           reason,
		ShadowMode:       shadowMode,
		Evidence: map[string]any{
			"environment":         ctx.Environment,
			"risk_class":          ctx.RiskClass,
			"idempotent":          ctx.Idempotent,
			"external_dependency": ctx.ExternalDependency,
			"uses_personal_data":  ctx.UsesPersonalData,
		},
		ImmuneAlertRequired: immuneAlert,
		HealthImpact:        e.assessHealthImpact(mode, recovery),
	}

	if e.log != nil {
		e.log.Info(fmt.Sprintf("decision: mode=%s recovery=%s budget_source=%s rules=%v shadow=%v",
			decision.Mode, decision.RecoveryStrategy, decision.BudgetResolution.Source, decision.TriggeredRules, decision.ShadowMode))
	}

	return decision, nil
}

func (e *Evaluator) findMatchingRule(ctx DecisionContext) (*manifest.ManifestRule, []string) {
	var matched []string
	for i := range e.sortedRules {
		rule := e.sortedRules[i]
		if !rule.Enabled {
			continue
		}
		if e.evaluateCondition(rule.When, ctx) {
			matched = append(matched, rule.RuleID)
			return &e.sortedRules[i], matched
		}
	}
	return nil, matched
}

func (e *Evaluator) evaluateCondition(cond manifest.RuleCondition, ctx DecisionContext) bool {
	if len(cond.Any) > 0 {
		for _, sub := range cond.Any {
			if e.evaluateCondition(sub, ctx) {
				return true
			}
		}
		return false
	}
	if len(cond.All) > 0 {
		for _, sub := range cond.All {
			if !e.evaluateCondition(sub, ctx) {
				return false
			}
		}
		return true
	}
	return matchesFields(cond.Fields, ctx.asFields())
}

func matchesFields(expected map[string]any, actual map[string]any) bool {
	for field, want := range expected {
		got, ok := actual[field]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// resolveBudget follows job_override > rule_override > defaults, then
// applies the risk class multiplier (if any) on top of whichever budget won.
func (e *Evaluator) resolveBudget(ctx DecisionContext, matchedRule *manifest.ManifestRule) (BudgetResolution, error) {
	var budget manifest.Budget
	source := "defaults"
	ruleID := ""

	switch {
	case func() bool { _, ok := e.manifest.JobOverrides[ctx.JobType]; return ok }():
		budget = e.manifest.JobOverrides[ctx.JobType]
		source = "job_override"
	case matchedRule != nil && matchedRule.BudgetOverride != nil:
		budget = *matchedRule.BudgetOverride
		source = "rule_override"
		ruleID = matchedRule.RuleID
	default:
		budget = e.manifest.BudgetDefaults
		source = "defaults"
	}

	var multiplier *float64
	if ctx.RiskClass != "" {
		if rc, ok := e.manifest.RiskClasses[ctx.RiskClass]; ok {
			m := rc.BudgetMultiplier
			if m != 1.0 {
				budget = budget.WithMultiplier(m)
				multiplier = &m
			}
		}
	}

	return BudgetResolution{
		Budget:            budget,
		Source:            source,
		RuleID:            ruleID,
		MultiplierApplied: multiplier,
		JobType:           ctx.JobType,
		RiskClass:         ctx.RiskClass,
	}, nil
}

func (e *Evaluator) riskClassRecovery(riskClass string) manifest.RecoveryStrategy {
	if riskClass == "" {
		return ""
	}
	rc, ok := e.manifest.RiskClasses[riskClass]
	if !ok {
		return ""
	}
	return rc.RecoveryStrategy
}

func (e *Evaluator) shouldAlertImmune(mode manifest.Mode, recovery manifest.RecoveryStrategy, ctx DecisionContext) bool {
	if recovery == manifest.RecoveryManualConfirm {
		return true
	}
	if mode == manifest.ModeRail && ctx.Environment == "production" {
		return true
	}
	if ctx.UsesPersonalData {
		return true
	}
	return false
}

func (e *Evaluator) assessHealthImpact(mode manifest.Mode, recovery manifest.RecoveryStrategy) string {
	if recovery == manifest.RecoveryManualConfirm {
		return "high"
	}
	if mode == manifest.ModeRail {
		return "medium"
	}
	return "low"
}
