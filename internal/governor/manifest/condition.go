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

import "encoding/json"

// UnmarshalJSON splits "any"/"all" out of the raw object and leaves the
// remaining keys as direct field-equality matches.
func (c *RuleCondition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if any, ok := raw["any"]; ok {
		var subs []RuleCondition
		if err := json.Unmarshal(any, &subs); err != nil {
			return err
		}
		c.Any = subs
		delete(raw, "any")
	}
	if all, ok := raw["all"]; ok {
		var subs []RuleCondition
		if err := json.Unmarshal(all, &subs); err != nil {
			return err
		}
		c.All = subs
		delete(raw, "all")
	}

	if len(raw) > 0 {
		fields := make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			fields[k] = val
		}
		c.Fields = fields
	}

	return nil
}

// MarshalJSON re-composes any/all and the direct fields into one object.
func (c RuleCondition) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Fields)+2)
	for k, v := range c.Fields {
		out[k] = v
	}
	if len(c.Any) > 0 {
		out["any"] = c.Any
	}
	if len(c.All) > 0 {
		out["all"] = c.All
	}
	return json.Marshal(out)
}
