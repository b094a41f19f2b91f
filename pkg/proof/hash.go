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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeLinkHash computes a chain link's hash.
// Hash = SHA256(Key|Type|Payload|Timestamp|PrevHash)
func ComputeLinkHash(l Link) string {
	h := sha256.New()
	h.Write([]byte(l.Key))
	h.Write([]byte("|"))
	h.Write([]byte(l.Type))
	h.Write([]byte("|"))
	h.Write([]byte(l.Payload))
	h.Write([]byte("|"))
	h.Write([]byte(l.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"))) // RFC3339Nano
	h.Write([]byte("|"))
	h.Write([]byte(l.PrevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateChain verifies a full hash chain, in order.
func ValidateChain(links []Link) error {
	if len(links) == 0 {
		return nil
	}

	if links[0].PrevHash != "" {
		return fmt.Errorf("first link prev_hash should be empty, got: %s", links[0].PrevHash)
	}
	if expected := ComputeLinkHash(links[0]); expected != links[0].Hash {
		return fmt.Errorf("link 0 hash mismatch: expected %s, got %s", expected, links[0].Hash)
	}

	for i := 1; i < len(links); i++ {
		if links[i].PrevHash != links[i-1].Hash {
			return fmt.Errorf("hash chain broken at link %d: prev_hash=%s, expected=%s",
				i, links[i].PrevHash, links[i-1].Hash)
		}
		if expected := ComputeLinkHash(links[i]); expected != links[i].Hash {
			return fmt.Errorf("link %d hash mismatch: expected %s, got %s", i, expected, links[i].Hash)
		}
	}

	return nil
}

// ComputeFileHash hashes arbitrary file content, reused to fingerprint
// preflight-referenced templates (C6).
func ComputeFileHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
