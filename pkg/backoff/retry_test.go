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

package backoff_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/JoshuaAmaju/popform/pkg/backoff"
)

var _ = Describe("RetryTracker", func() {
	var tracker *backoff.RetryTracker

	BeforeEach(func() {
		tracker = backoff.NewRetryTracker("test-form", zap.NewNop().Sugar())
	})

	Context("with no recorded failures", func() {
		It("should report zero failures and no delay", func() {
			Expect(tracker.Failures()).To(Equal(0))
			Expect(tracker.NextDelay()).To(BeZero())
			Expect(tracker.LastError()).To(BeNil())
			Expect(tracker.IsPermanentlyFailed()).To(BeFalse())
			Expect(tracker.GetBackoffError()).To(BeNil())
		})
	})

	Context("when recording failures", func() {
		It("should count consecutive failures and keep the last error", func() {
			first := errors.New("attempt 1 failed")  //nolint:err113 // Test needs dynamic error
			second := errors.New("attempt 2 failed") //nolint:err113 // Test needs dynamic error

			tracker.RecordFailure(first)
			tracker.RecordFailure(second)

			Expect(tracker.Failures()).To(Equal(2))
			Expect(tracker.LastError()).To(Equal(second))
		})

		It("should suggest a positive delay after a failure", func() {
			tracker.RecordFailure(errors.New("boom")) //nolint:err113 // Test needs dynamic error

			Expect(tracker.NextDelay()).To(BeNumerically(">", 0))
		})

		It("should not count ignored errors", func() {
			tracker.RecordFailure(backoff.NewIgnoredError(errors.New("cancelled"))) //nolint:err113 // Test needs dynamic error

			Expect(tracker.Failures()).To(Equal(0))
			Expect(tracker.NextDelay()).To(BeZero())
		})

		It("should report a temporary backoff error while retries remain", func() {
			tracker.RecordFailure(errors.New("boom")) //nolint:err113 // Test needs dynamic error

			err := tracker.GetBackoffError()
			Expect(backoff.IsTemporaryBackoffError(err)).To(BeTrue())
			Expect(backoff.IsPermanentFailureError(err)).To(BeFalse())
		})
	})

	Context("when the retry budget is exhausted", func() {
		BeforeEach(func() {
			for i := 0; i < backoff.DefaultMaxRetries; i++ {
				tracker.RecordFailure(errors.New("boom")) //nolint:err113 // Test needs dynamic error
			}
		})

		It("should report permanent failure", func() {
			Expect(tracker.IsPermanentlyFailed()).To(BeTrue())
			Expect(backoff.IsPermanentFailureError(tracker.GetBackoffError())).To(BeTrue())
		})

		It("should recover after a recorded success", func() {
			tracker.RecordSuccess()

			Expect(tracker.Failures()).To(Equal(0))
			Expect(tracker.IsPermanentlyFailed()).To(BeFalse())
			Expect(tracker.GetBackoffError()).To(BeNil())
		})
	})

	Context("with a permanent error", func() {
		It("should report permanent failure regardless of the count", func() {
			tracker.RecordFailure(backoff.NewPermanentError(errors.New("rejected"))) //nolint:err113 // Test needs dynamic error

			Expect(tracker.Failures()).To(Equal(1))
			Expect(tracker.IsPermanentlyFailed()).To(BeTrue())
		})
	})

	Context("when reset", func() {
		It("should clear all bookkeeping", func() {
			tracker.RecordFailure(errors.New("boom")) //nolint:err113 // Test needs dynamic error
			tracker.Reset()

			Expect(tracker.Failures()).To(Equal(0))
			Expect(tracker.LastError()).To(BeNil())
			Expect(tracker.NextDelay()).To(BeZero())
		})
	})
})
