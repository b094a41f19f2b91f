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

// Package decision is the deterministic governance rule evaluator (C3).
package decision

import (
	"time"

	"neurorail/internal/governor/manifest"
)

// DecisionContext is the job context a rule set is evaluated against.
type DecisionContext struct {
	MissionID         string
	PlanID            string
	JobID             string
	JobType           string
	Environment       string // "production" | "staging" | "development"
	RiskClass         string
	Idempotent        bool
	ExternalDependency bool
	UsesPersonalData  bool
}

// asFields flattens the context's matchable fields for condition evaluation.
func (c DecisionContext) asFields() map[string]any {
	return map[string]any{
		"job_type":            c.JobType,
		"environment":         c.Environment,
		"risk_class":          c.RiskClass,
		"idempotent":          c.Idempotent,
		"external_dependency": c.ExternalDependency,
		"uses_personal_data":  c.UsesPersonalData,
	}
}

// BudgetResolution is the resolved budget plus provenance of where it came
// from, so a decision is fully explainable after the fact.
type BudgetResolution struct {
	Budget            manifest.Budget
	Source            string // "job_override" | "rule_override" | "defaults"
	RuleID            string
	MultiplierApplied *float64
	JobType           string
	RiskClass         string
}

// GovernorDecision is the immutable record of one evaluation.
type GovernorDecision struct {
	DecisionID          string
	Timestamp           time.Time
	MissionID           string
	PlanID              string
	JobID               string
	JobType             string
	Mode                manifest.Mode
	BudgetResolution    BudgetResolution
	RecoveryStrategy    manifest.RecoveryStrategy
	ManifestID          string
	ManifestVersion     string
	TriggeredRules      []string
	Reason              string
	ShadowMode          bool
	Evidence            map[string]any
	ImmuneAlertRequired bool
	HealthImpact        string // "low" | "medium" | "high"
}

// DecisionQuery filters a decision store listing.
type DecisionQuery struct {
	MissionID        string
	JobID            string
	JobType          string
	Mode             manifest.Mode
	ManifestVersion  string
	RecoveryStrategy manifest.RecoveryStrategy
	ShadowMode       *bool
	StartTime        *time.Time
	EndTime          *time.Time
	Limit            int
	Offset           int
}

// DecisionStatistics aggregates a decision store over a time window.
type DecisionStatistics struct {
	Total               int
	ByMode               map[manifest.Mode]int
	ByManifestVersion    map[string]int
	ByRecoveryStrategy   map[manifest.RecoveryStrategy]int
	ImmuneAlertsRequired int
}
