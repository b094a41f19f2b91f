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

package enforcement

import (
	"sync"

	"neurorail/internal/governor/manifest"
	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
)

const defaultMaxParallelAttempts = 5

// semaphore is a buffered-channel counting semaphore whose TryAcquire
// rejects immediately instead of blocking when full.
type semaphore chan struct{}

func newSemaphore(n int) semaphore { return make(semaphore, n) }

func (s semaphore) tryAcquire() bool {
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s semaphore) release() { <-s }

// ParallelismLimiter enforces global and per-job concurrency caps. Slot
// acquisition is non-blocking: a caller that finds the limit saturated is
// rejected with BUDGET_PARALLELISM_EXCEEDED rather than queued.
type ParallelismLimiter struct {
	maxGlobalParallel int
	globalSem         semaphore

	mu              sync.Mutex
	jobSemaphores   map[string]semaphore
	globalActive    int
	globalPeak      int
	globalRejected  int
	jobActiveCounts map[string]int
	jobRejected     map[string]int
}

// NewParallelismLimiter builds a limiter with the given global cap.
func NewParallelismLimiter(maxGlobalParallel int) *ParallelismLimiter {
	if maxGlobalParallel <= 0 {
		maxGlobalParallel = 100
	}
	return &ParallelismLimiter{
		maxGlobalParallel: maxGlobalParallel,
		globalSem:         newSemaphore(maxGlobalParallel),
		jobSemaphores:     make(map[string]semaphore),
		jobActiveCounts:   make(map[string]int),
		jobRejected:       make(map[string]int),
	}
}

func (l *ParallelismLimiter) jobSemaphore(jobID string, maxParallel int) semaphore {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.jobSemaphores[jobID]
	if !ok {
		s = newSemaphore(maxParallel)
		l.jobSemaphores[jobID] = s
	}
	return s
}

// Slot represents one acquired execution slot; Release must be called
// exactly once to give it back.
type Slot struct {
	limiter *ParallelismLimiter
	jobID   string
	jobSem  semaphore
}

// Release gives back the slot held by s.
func (s Slot) Release() {
	s.limiter.mu.Lock()
	s.limiter.globalActive--
	s.limiter.jobActiveCounts[s.jobID]--
	s.limiter.mu.Unlock()

	s.jobSem.release()
	s.limiter.globalSem.release()
	metrics.ParallelismActiveGauge.WithLabelValues("global").Set(float64(s.limiter.globalActive))
}

// AcquireSlot tries to acquire a global and a per-job slot for jobID,
// non-blocking. Returns BUDGET_PARALLELISM_EXCEEDED if either is saturated.
func (l *ParallelismLimiter) AcquireSlot(jobID string, budget manifest.Budget) (Slot, error) {
	maxParallelAttempts := defaultMaxParallelAttempts
	if budget.MaxParallelAttempts != nil {
		maxParallelAttempts = *budget.MaxParallelAttempts
	}
	jobSem := l.jobSemaphore(jobID, maxParallelAttempts)

	if !l.globalSem.tryAcquire() {
		l.mu.Lock()
		l.globalRejected++
		l.mu.Unlock()
		metrics.ParallelismRejectedTotal.WithLabelValues("global").Inc()
		return Slot{}, nrerrors.New(nrerrors.BudgetParallelismExceeded, "global parallelism limit exceeded", map[string]any{
			"job_id":              jobID,
			"max_global_parallel": l.maxGlobalParallel,
			"limit_type":          "global",
		})
	}

	if !jobSem.tryAcquire() {
		l.globalSem.release()
		l.mu.Lock()
		l.jobRejected[jobID]++
		l.mu.Unlock()
		metrics.ParallelismRejectedTotal.WithLabelValues("job").Inc()
		return Slot{}, nrerrors.New(nrerrors.BudgetParallelismExceeded, "job parallelism limit exceeded", map[string]any{
			"job_id":                jobID,
			"max_parallel_attempts": maxParallelAttempts,
			"limit_type":            "job",
		})
	}

	l.mu.Lock()
	l.globalActive++
	if l.globalActive > l.globalPeak {
		l.globalPeak = l.globalActive
	}
	l.jobActiveCounts[jobID]++
	l.mu.Unlock()
	metrics.ParallelismActiveGauge.WithLabelValues("global").Set(float64(l.globalActive))

	return Slot{limiter: l, jobID: jobID, jobSem: jobSem}, nil
}

// ExecuteWithLimit acquires a slot for jobID, runs task, and always releases
// the slot afterward.
func (l *ParallelismLimiter) ExecuteWithLimit(jobID string, budget manifest.Budget, task func() (any, error)) (any, error) {
	slot, err := l.AcquireSlot(jobID, budget)
	if err != nil {
		return nil, err
	}
	defer slot.Release()
	return task()
}

// ParallelismMetrics is a point-in-time snapshot of the limiter's counters.
type ParallelismMetrics struct {
	GlobalActiveCount int
	GlobalPeakCount   int
	GlobalRejected    int
	MaxGlobalParallel int
	JobActiveCounts   map[string]int
	JobRejectedCounts map[string]int
}

// GetMetrics snapshots the limiter's counters.
func (l *ParallelismLimiter) GetMetrics() ParallelismMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	active := make(map[string]int, len(l.jobActiveCounts))
	for k, v := range l.jobActiveCounts {
		active[k] = v
	}
	rejected := make(map[string]int, len(l.jobRejected))
	for k, v := range l.jobRejected {
		rejected[k] = v
	}
	return ParallelismMetrics{
		GlobalActiveCount: l.globalActive,
		GlobalPeakCount:   l.globalPeak,
		GlobalRejected:    l.globalRejected,
		MaxGlobalParallel: l.maxGlobalParallel,
		JobActiveCounts:   active,
		JobRejectedCounts: rejected,
	}
}

// ResetMetrics clears rejection counters. Active/peak counts reflect live
// state and are never reset.
func (l *ParallelismLimiter) ResetMetrics() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.globalRejected = 0
	l.jobRejected = make(map[string]int)
}
