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
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"neurorail/internal/governor/manifest"
	"neurorail/internal/metrics"
	nrerrors "neurorail/pkg/errors"
)

const defaultMaxRetries = 3

// RetryHandler retries a task with exponential backoff and jitter, stopping
// as soon as an error classifies as non-retriable or the budget's
// max_retries is exhausted.
type RetryHandler struct {
	jobType string
}

// NewRetryHandler builds a RetryHandler. jobType labels its metrics.
func NewRetryHandler(jobType string) *RetryHandler {
	return &RetryHandler{jobType: jobType}
}

// Run executes task, retrying on retriable errors (per pkg/errors'
// taxonomy) up to budget.MaxRetries times (default 3) with exponential
// backoff. Returns RETRY_EXHAUSTED wrapping the last error once attempts
// are spent.
func (h *RetryHandler) Run(ctx context.Context, budget manifest.Budget, task func(ctx context.Context, attempt int) error) error {
	maxRetries := defaultMaxRetries
	if budget.MaxRetries != nil {
		maxRetries = *budget.MaxRetries
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0

	withMax := backoff.WithMaxRetries(bo, uint64(maxRetries))
	withCtx := backoff.WithContext(withMax, ctx)

	attempt := 0
	var lastErr error

	err := backoff.Retry(func() error {
		attempt++
		metrics.RetryAttemptsTotal.WithLabelValues(h.jobType).Inc()

		err := task(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !nrerrors.IsRetriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, withCtx)

	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if ok := asPermanent(err, &perm); ok {
		return perm.Err
	}
	// backoff.Retry already unwraps a Permanent error, so a non-retriable
	// failure arrives here as the bare error and is returned unchanged.
	if lastErr != nil && !nrerrors.IsRetriable(lastErr) {
		return lastErr
	}

	metrics.RetryExhaustedTotal.WithLabelValues(h.jobType).Inc()
	return nrerrors.Wrap(nrerrors.RetryExhausted, lastErr, "all retry attempts exhausted", map[string]any{
		"job_type":    h.jobType,
		"max_retries": maxRetries,
		"attempts":    attempt,
	})
}

func asPermanent(err error, target **backoff.PermanentError) bool {
	p, ok := err.(*backoff.PermanentError)
	if !ok {
		return false
	}
	*target = p
	return true
}
