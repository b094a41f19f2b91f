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

import (
	"testing"
	"time"
)

func makeChain(key string, n int) []Link {
	links := make([]Link, n)
	prev := ""
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		l := Link{
			Key:       key,
			Type:      "created",
			Payload:   `{"seq":1}`,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			PrevHash:  prev,
		}
		l.Hash = ComputeLinkHash(l)
		links[i] = l
		prev = l.Hash
	}
	return links
}

func TestValidateChainOK(t *testing.T) {
	links := makeChain("m_family_1", 5)
	if err := ValidateChain(links); err != nil {
		t.Fatalf("ValidateChain() = %v, want nil", err)
	}
}

func TestValidateChainEmpty(t *testing.T) {
	if err := ValidateChain(nil); err != nil {
		t.Fatalf("ValidateChain(nil) = %v, want nil", err)
	}
}

func TestValidateChainBrokenLink(t *testing.T) {
	links := makeChain("m_family_1", 3)
	links[2].PrevHash = "deadbeef"
	if err := ValidateChain(links); err == nil {
		t.Fatal("ValidateChain() = nil, want error on broken prev_hash")
	}
}

func TestValidateChainTamperedPayload(t *testing.T) {
	links := makeChain("m_family_1", 3)
	links[1].Payload = `{"seq":999}`
	if err := ValidateChain(links); err == nil {
		t.Fatal("ValidateChain() = nil, want error on tampered payload")
	}
}

func TestValidateChainFirstLinkMustHaveEmptyPrevHash(t *testing.T) {
	links := makeChain("m_family_1", 2)
	links[0].PrevHash = "nonempty"
	if err := ValidateChain(links); err == nil {
		t.Fatal("ValidateChain() = nil, want error when first link has non-empty prev_hash")
	}
}

func TestComputeLinkHashDeterministic(t *testing.T) {
	l := Link{Key: "j_1", Type: "x", Payload: "{}", CreatedAt: time.Unix(0, 0).UTC()}
	if ComputeLinkHash(l) != ComputeLinkHash(l) {
		t.Fatal("ComputeLinkHash should be deterministic for identical input")
	}
}

func TestComputeFileHash(t *testing.T) {
	a := ComputeFileHash([]byte("template body"))
	b := ComputeFileHash([]byte("template body"))
	c := ComputeFileHash([]byte("different body"))
	if a != b {
		t.Error("ComputeFileHash should be stable for identical content")
	}
	if a == c {
		t.Error("ComputeFileHash should differ for different content")
	}
}
