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

package manifest

import (
	"encoding/json"
	"sort"

	"neurorail/pkg/proof"
)

// canonicalPayload serializes the hash-relevant fields of m with sorted
// rule ordering, excluding hash_self and the activation/shadow timestamps.
func (m Manifest) canonicalPayload() (string, error) {
	rules := make([]ManifestRule, len(m.Rules))
	copy(rules, m.Rules)
	sort.Slice(rules, func(i, j int) bool { return rules[i].RuleID < rules[j].RuleID })

	payload := struct {
		ManifestID     string               `json:"manifest_id"`
		Version        string               `json:"version"`
		Rules          []ManifestRule       `json:"rules"`
		BudgetDefaults Budget               `json:"budget_defaults"`
		RiskClasses    map[string]RiskClass `json:"risk_classes"`
		JobOverrides   map[string]Budget    `json:"job_overrides,omitempty"`
		Metadata       map[string]any       `json:"metadata,omitempty"`
	}{
		ManifestID:     m.ManifestID,
		Version:        m.Version,
		Rules:          rules,
		BudgetDefaults: m.BudgetDefaults,
		RiskClasses:    m.RiskClasses,
		JobOverrides:   m.JobOverrides,
		Metadata:       m.Metadata,
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ComputeHash derives hash_self from m's canonical serialization, chained
// off hash_prev, via the same proof.Link primitive the audit log uses.
func (m Manifest) ComputeHash() (string, error) {
	payload, err := m.canonicalPayload()
	if err != nil {
		return "", err
	}
	link := proof.Link{
		Key:       m.ManifestID,
		Type:      "manifest",
		Payload:   payload,
		CreatedAt: m.CreatedAt,
		PrevHash:  m.HashPrev,
	}
	return proof.ComputeLinkHash(link), nil
}
