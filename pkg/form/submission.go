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

package form

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JoshuaAmaju/popform/pkg/metrics"
)

// submissionResult carries a submitter completion back into the run loop.
// The attempt tag lets the supervisor discard completions for attempts that
// are no longer the active one.
type submissionResult struct {
	attempt uuid.UUID
	data    any
	err     error
}

// startSubmission launches the single outstanding submission attempt. Called
// on entering the submitting state, with the mutex held; the submitter itself
// runs on its own goroutine and never under the lock.
func (s *Supervisor) startSubmission() {
	attempt := uuid.New()
	s.currentAttempt = attempt

	attemptCtx, cancel := context.WithCancel(s.runCtx)
	s.attemptCancel = cancel

	values := s.formCtx.Values.Clone()
	submitter := s.submitter

	s.logger.Debugf("Starting submission attempt %s for form %s", attempt, s.id)

	go func() {
		var (
			data any
			err  error
		)
		if submitter == nil {
			err = ErrNoSubmitter
		} else {
			data, err = submitter(attemptCtx, values)
		}

		select {
		case s.submissions <- submissionResult{attempt: attempt, data: data, err: err}:
		case <-s.runCtx.Done():
		}
	}()
}

// handleSubmissionResult applies a submitter completion. Completions that do
// not match the active attempt, or that arrive when the supervisor is no
// longer submitting, are stale and get discarded.
func (s *Supervisor) handleSubmissionResult(sr submissionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.GetCurrentFSMState() != OperationalStateSubmitting || sr.attempt != s.currentAttempt {
		s.logger.Debugf("Discarding stale submission result for attempt %s", sr.attempt)
		return
	}

	now := time.Now()

	if sr.err != nil {
		s.formCtx.Err = sr.err
		s.formCtx.ErrorUpdatedAt = now
		metrics.IncSubmission(s.id, "failed")
		s.fire(EventSubmitFailed)
		return
	}

	s.formCtx.Data = sr.data
	s.formCtx.DataUpdatedAt = now
	metrics.IncSubmission(s.id, "succeeded")
	s.fire(EventSubmitSucceeded)
}

// clearAttempt abandons the active attempt. Called on leaving the submitting
// state, whether by completion or cancellation.
func (s *Supervisor) clearAttempt() {
	if s.attemptCancel != nil {
		s.attemptCancel()
		s.attemptCancel = nil
	}
	s.currentAttempt = uuid.Nil
}
