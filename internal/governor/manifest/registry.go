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
	"sort"
	"sync"
	"time"

	nrerrors "neurorail/pkg/errors"
)

// Registry stores versioned, hash-chained manifests and manages the
// active/shadow pointer (C2). Reads are lock-free-ish (RWMutex); writes,
// including activation, are serialized.
type Registry struct {
	mu         sync.RWMutex
	byVersion  map[string]Manifest
	order      []string // insertion order, newest last
}

// NewRegistry builds an empty manifest registry.
func NewRegistry() *Registry {
	return &Registry{byVersion: make(map[string]Manifest)}
}

// Create stores a new manifest version. Computes hash_self if unset;
// validates the hash chain against hash_prev unless validateChain is false.
func (r *Registry) Create(m Manifest, validateChain bool) (Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if validateChain && m.HashPrev != "" {
		if !r.hashExistsLocked(m.HashPrev) {
			return Manifest{}, nrerrors.New(nrerrors.ManifestHashMismatch,
				"hash_prev does not match any known manifest",
				map[string]any{"hash_prev": m.HashPrev, "version": m.Version})
		}
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.HashSelf == "" {
		h, err := m.ComputeHash()
		if err != nil {
			return Manifest{}, nrerrors.Wrap(nrerrors.ManifestInvalidSchema, err, "failed to compute manifest hash", nil)
		}
		m.HashSelf = h
	}

	r.byVersion[m.Version] = m
	r.order = append(r.order, m.Version)
	return m, nil
}

func (r *Registry) hashExistsLocked(hash string) bool {
	for _, m := range r.byVersion {
		if m.HashSelf == hash {
			return true
		}
	}
	return false
}

// Get returns the manifest at version, or MANIFEST_NOT_FOUND.
func (r *Registry) Get(version string) (Manifest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byVersion[version]
	if !ok {
		return Manifest{}, nrerrors.New(nrerrors.ManifestNotFound, "manifest version not found", map[string]any{"version": version})
	}
	return m, nil
}

// GetActive returns the currently active manifest, if any.
func (r *Registry) GetActive() (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.byVersion {
		if !m.ShadowMode && m.EffectiveAt != nil {
			return m, true
		}
	}
	return Manifest{}, false
}

// GetShadow returns the most recently shadowed manifest, if any.
func (r *Registry) GetShadow() (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best Manifest
	found := false
	for _, m := range r.byVersion {
		if m.ShadowMode && m.ShadowStart != nil {
			if !found || m.ShadowStart.After(*best.ShadowStart) {
				best, found = m, true
			}
		}
	}
	return best, found
}

// List returns manifests ordered newest-created-first, paginated.
func (r *Registry) List(limit, offset int) []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := make([]string, len(r.order))
	copy(versions, r.order)
	sort.Slice(versions, func(i, j int) bool {
		return r.byVersion[versions[i]].CreatedAt.After(r.byVersion[versions[j]].CreatedAt)
	})

	if offset >= len(versions) {
		return nil
	}
	versions = versions[offset:]
	if limit > 0 && limit < len(versions) {
		versions = versions[:limit]
	}

	out := make([]Manifest, 0, len(versions))
	for _, v := range versions {
		out = append(out, r.byVersion[v])
	}
	return out
}

// SetShadow flips version into shadow mode and stamps shadow_start.
func (r *Registry) SetShadow(version string) (Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byVersion[version]
	if !ok {
		return Manifest{}, nrerrors.New(nrerrors.ManifestNotFound, "manifest version not found", map[string]any{"version": version})
	}
	now := time.Now()
	m.ShadowMode = true
	m.ShadowStart = &now
	m.EffectiveAt = nil
	r.byVersion[version] = m
	return m, nil
}

// Activate promotes version to active. Unless force, requires
// shadowReport.SafeToActivate. Atomically demotes the previously active
// manifest to shadow.
func (r *Registry) Activate(version string, gateConfig ActivationGateConfig, shadowReport *ShadowReport, force bool) (Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.byVersion[version]
	if !ok {
		return Manifest{}, nrerrors.New(nrerrors.ManifestNotFound, "manifest version not found", map[string]any{"version": version})
	}

	if !force {
		if shadowReport == nil {
			return Manifest{}, nrerrors.New(nrerrors.ActivationGateBlocked,
				"shadow report required for activation (use force=true to override)",
				map[string]any{"version": version})
		}
		if !shadowReport.SafeToActivate {
			return Manifest{}, nrerrors.New(nrerrors.ActivationGateBlocked,
				"activation gate blocked: "+shadowReport.ActivationGateReason,
				map[string]any{"version": version, "jobs_diverged": shadowReport.JobsDiverged})
		}
		if target.ShadowStart != nil && time.Since(*target.ShadowStart) < gateConfig.MinShadowDuration {
			return Manifest{}, nrerrors.New(nrerrors.ActivationGateBlocked,
				"manifest has not been in shadow long enough",
				map[string]any{"version": version, "shadow_since": *target.ShadowStart})
		}
	}

	for v, m := range r.byVersion {
		if !m.ShadowMode && m.EffectiveAt != nil {
			m.ShadowMode = true
			m.EffectiveAt = nil
			r.byVersion[v] = m
		}
	}

	now := time.Now()
	target.ShadowMode = false
	target.EffectiveAt = &now
	r.byVersion[version] = target

	return target, nil
}
