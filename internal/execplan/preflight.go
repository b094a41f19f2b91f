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

package execplan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"neurorail/pkg/proof"
)

// TemplateLoader resolves a template_id to its file content, used only to
// fingerprint the template via pkg/proof.ComputeFileHash so a missing or
// unreadable template is caught before any mutation runs.
type TemplateLoader func(templateID string) ([]byte, error)

// NetworkChecker reports whether external connectivity is available,
// invoked only when the plan contains steps whose executor type requires it.
type NetworkChecker func(ctx context.Context) error

// PreflightChecker validates a plan's prerequisites before execution:
// disk space, referenced templates, output directory writability, and
// (conditionally) network connectivity. All checks that apply to a plan
// run concurrently; the checker is fail-fast only in the sense that a
// failing hard check aborts execution before any step runs.
type PreflightChecker struct {
	outputDir          string
	minFreeBytes       uint64
	loadTemplate       TemplateLoader
	checkNetwork       NetworkChecker
	networkExecutors   map[string]bool
}

// NewPreflightChecker builds a checker rooted at outputDir, requiring at
// least minFreeBytes of free disk space. networkExecutors names the
// executor types whose presence in a plan triggers the network check.
func NewPreflightChecker(outputDir string, minFreeBytes uint64, loadTemplate TemplateLoader, checkNetwork NetworkChecker, networkExecutors []string) *PreflightChecker {
	set := make(map[string]bool, len(networkExecutors))
	for _, t := range networkExecutors {
		set[t] = true
	}
	return &PreflightChecker{
		outputDir:        outputDir,
		minFreeBytes:     minFreeBytes,
		loadTemplate:     loadTemplate,
		checkNetwork:     checkNetwork,
		networkExecutors: set,
	}
}

// CheckPrerequisites runs all applicable checks for plan and aggregates
// their results. A check's failure becomes an error (blocking) except for
// network, which is reported as a warning only.
func (c *PreflightChecker) CheckPrerequisites(ctx context.Context, plan *BusinessPlan) (PreflightResult, error) {
	var (
		mu     sync.Mutex
		checks []PreflightCheck
	)
	record := func(chk PreflightCheck) {
		mu.Lock()
		checks = append(checks, chk)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		record(c.checkDiskSpace())
		return nil
	})
	g.Go(func() error {
		record(c.checkTemplates(plan))
		return nil
	})
	g.Go(func() error {
		record(c.checkOutputDirectory())
		return nil
	})
	if c.requiresNetwork(plan) {
		g.Go(func() error {
			record(c.checkNetworkConnectivity(gctx))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return PreflightResult{}, err
	}

	var errs, warnings []string
	for _, chk := range checks {
		if chk.Passed {
			continue
		}
		if chk.Name == "network" {
			warnings = append(warnings, chk.Message)
		} else {
			errs = append(errs, chk.Message)
		}
	}

	return PreflightResult{
		Passed:   len(errs) == 0,
		Checks:   checks,
		Errors:   errs,
		Warnings: warnings,
	}, nil
}

func (c *PreflightChecker) checkDiskSpace() PreflightCheck {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(c.outputDir, &stat); err != nil {
		// output dir may not exist yet; fall back to its parent
		if err2 := syscall.Statfs(filepath.Dir(c.outputDir), &stat); err2 != nil {
			return PreflightCheck{Name: "disk_space", Passed: false, Message: fmt.Sprintf("failed to check disk space: %v", err)}
		}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	passed := free >= c.minFreeBytes
	return PreflightCheck{
		Name:    "disk_space",
		Passed:  passed,
		Message: fmt.Sprintf("available disk space: %d bytes (required: %d)", free, c.minFreeBytes),
		Details: map[string]any{"free_bytes": free, "required_bytes": c.minFreeBytes},
	}
}

func (c *PreflightChecker) checkTemplates(plan *BusinessPlan) PreflightCheck {
	if c.loadTemplate == nil {
		return PreflightCheck{Name: "templates", Passed: true, Message: "no template loader configured"}
	}

	var missing []string
	hashes := make(map[string]string)
	checked := 0
	for _, s := range plan.Steps {
		if s.TemplateID == "" {
			continue
		}
		checked++
		content, err := c.loadTemplate(s.TemplateID)
		if err != nil {
			missing = append(missing, s.TemplateID)
			continue
		}
		hashes[s.TemplateID] = proof.ComputeFileHash(content)
	}

	if len(missing) > 0 {
		return PreflightCheck{
			Name:    "templates",
			Passed:  false,
			Message: fmt.Sprintf("missing templates: %v", missing),
			Details: map[string]any{"missing_templates": missing},
		}
	}
	return PreflightCheck{
		Name:    "templates",
		Passed:  true,
		Message: fmt.Sprintf("all required templates available (%d checked)", checked),
		Details: map[string]any{"template_hashes": hashes},
	}
}

func (c *PreflightChecker) checkOutputDirectory() PreflightCheck {
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return PreflightCheck{Name: "output_directory", Passed: false, Message: fmt.Sprintf("output directory not writable: %v", err)}
	}
	probe := filepath.Join(c.outputDir, ".write_test")
	if err := os.WriteFile(probe, []byte("test"), 0o644); err != nil {
		return PreflightCheck{Name: "output_directory", Passed: false, Message: fmt.Sprintf("output directory not writable: %v", err)}
	}
	_ = os.Remove(probe)
	return PreflightCheck{Name: "output_directory", Passed: true, Message: "output directory writable: " + c.outputDir, Details: map[string]any{"path": c.outputDir}}
}

func (c *PreflightChecker) checkNetworkConnectivity(ctx context.Context) PreflightCheck {
	if c.checkNetwork == nil {
		return PreflightCheck{Name: "network", Passed: true, Message: "no network checker configured"}
	}
	if err := c.checkNetwork(ctx); err != nil {
		return PreflightCheck{Name: "network", Passed: false, Message: fmt.Sprintf("network connectivity failed: %v", err)}
	}
	return PreflightCheck{Name: "network", Passed: true, Message: "network connectivity verified"}
}

func (c *PreflightChecker) requiresNetwork(plan *BusinessPlan) bool {
	for _, s := range plan.Steps {
		if c.networkExecutors[s.ExecutorType] {
			return true
		}
	}
	return false
}
