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

package proof

import "time"

// Link is one entry in a hash chain. Both the manifest registry (keyed by
// manifest family) and the audit log (keyed by job_id, else plan_id, else
// mission_id) hash their entries as Links with the same primitive.
type Link struct {
	Key       string // chain key: manifest family id, or the audit chain key
	Type      string
	Payload   string // canonical JSON
	CreatedAt time.Time
	PrevHash  string
	Hash      string
}
