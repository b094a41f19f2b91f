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
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Enforcement.MaxGlobalParallel != 100 {
		t.Errorf("MaxGlobalParallel = %d, want 100", cfg.Enforcement.MaxGlobalParallel)
	}
	if cfg.Stream.BufferSize != 100 {
		t.Errorf("BufferSize = %d, want 100", cfg.Stream.BufferSize)
	}
	if cfg.Governor.ActivationGateDivergenceMax != 0.05 {
		t.Errorf("ActivationGateDivergenceMax = %v, want 0.05", cfg.Governor.ActivationGateDivergenceMax)
	}
}

func TestLoadNoFileKeepsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Enforcement.DefaultTimeoutMS != 30000 {
		t.Errorf("DefaultTimeoutMS = %d, want 30000", cfg.Enforcement.DefaultTimeoutMS)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("NEURORAIL_ENFORCEMENT_MAX_GLOBAL_PARALLEL", "7")
	defer os.Unsetenv("NEURORAIL_ENFORCEMENT_MAX_GLOBAL_PARALLEL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Enforcement.MaxGlobalParallel != 7 {
		t.Errorf("MaxGlobalParallel = %d, want 7 from env override", cfg.Enforcement.MaxGlobalParallel)
	}
}
