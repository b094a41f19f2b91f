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

package errors

import (
	"errors"
	"testing"
)

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	base := errors.New("base")
	wrapped := Wrapf(base, "id=%s", "a")
	if wrapped == nil {
		t.Fatal("Wrapf(err, ...) should not return nil")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestErrorClassification(t *testing.T) {
	err := New(ExecTimeout, "", nil)
	if err.Category() != Mechanical {
		t.Errorf("ExecTimeout category = %v, want mechanical", err.Category())
	}
	if err.Retriable() {
		t.Error("ExecTimeout should not be retriable")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("ExecTimeout severity = %v, want warning", err.Severity())
	}
}

func TestErrorWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	wrapped := Wrap(UpstreamUnavailable, cause, "", nil)
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped Error should unwrap to cause")
	}
	if !IsRetriable(wrapped) {
		t.Error("UpstreamUnavailable should be retriable")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(OrphanKilled, "job j_1 orphaned", map[string]any{"job_id": "j_1"})
	if !Is(a, OrphanKilled) {
		t.Error("Is should match by code regardless of message/details")
	}
	if !errors.Is(a, ErrOrphan) {
		t.Error("errors.Is(a, ErrOrphan) should match by code")
	}
	if errors.Is(a, ErrRetryExhausted) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestCategoryOfNonTaxonomyError(t *testing.T) {
	if CategoryOf(errors.New("plain")) != System {
		t.Error("CategoryOf a plain error should default to System")
	}
}
