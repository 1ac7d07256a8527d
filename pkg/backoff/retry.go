// Copyright 2026 Popform Authors
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

package backoff

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the number of consecutive failures after which a
	// tracker reports permanent failure.
	DefaultMaxRetries = 5

	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
)

// RetryTracker keeps the consecutive-failure count for a single submission
// pipeline and derives retry delays from it. The count only resets on a
// recorded success or an explicit Reset.
//
// The tracker itself never sleeps; callers ask NextDelay for a suggestion and
// apply their own retry policy on top.
type RetryTracker struct {
	mu sync.Mutex

	id         string
	failures   int
	maxRetries int
	lastErr    error

	expo   *backoff.ExponentialBackOff
	logger *zap.SugaredLogger
}

// NewRetryTracker creates a tracker with the default exponential policy.
func NewRetryTracker(id string, logger *zap.SugaredLogger) *RetryTracker {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = defaultInitialInterval
	expo.MaxInterval = defaultMaxInterval
	// Never give up based on elapsed time; permanence is decided by retry count.
	expo.MaxElapsedTime = 0

	return &RetryTracker{
		id:         id,
		maxRetries: DefaultMaxRetries,
		expo:       expo,
		logger:     logger,
	}
}

// RecordFailure increments the consecutive-failure count. Errors categorized
// as ignored do not count against the retry budget.
func (t *RetryTracker) RecordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if IsIgnoredError(err) {
		t.logger.Debugf("Ignored error for %s not counted: %v", t.id, err)
		return
	}

	t.failures++
	t.lastErr = err
	t.logger.Debugf("Recorded failure %d for %s: %v", t.failures, t.id, err)
}

// RecordSuccess resets the consecutive-failure count and the delay schedule.
func (t *RetryTracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
	t.lastErr = nil
	t.expo.Reset()
}

// Reset clears all failure bookkeeping, as on a form reset.
func (t *RetryTracker) Reset() {
	t.RecordSuccess()
}

// Failures returns the number of consecutive failed attempts.
func (t *RetryTracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// LastError returns the error recorded by the most recent failure.
func (t *RetryTracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// NextDelay suggests how long to wait before the next attempt.
// Returns zero when no failure has been recorded yet.
func (t *RetryTracker) NextDelay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failures == 0 {
		return 0
	}

	return t.expo.NextBackOff()
}

// IsPermanentlyFailed returns true once the retry budget is exhausted or a
// permanent error was recorded.
func (t *RetryTracker) IsPermanentlyFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if IsPermanentError(t.lastErr) {
		return true
	}

	return t.failures >= t.maxRetries
}

// GetBackoffError returns a structured error describing the tracker state:
// a permanent failure error once the budget is exhausted, a temporary backoff
// error while retries remain, or nil when no failure is recorded.
func (t *RetryTracker) GetBackoffError() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failures == 0 {
		return nil
	}

	if t.failures >= t.maxRetries || IsPermanentError(t.lastErr) {
		return fmt.Errorf("%s for %s after %d attempts: %w", PermanentFailureError, t.id, t.failures, t.lastErr)
	}

	return fmt.Errorf("%s for %s: %w", TemporaryBackoffError, t.id, t.lastErr)
}
