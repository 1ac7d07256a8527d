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
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JoshuaAmaju/popform/pkg/backoff"
)

var _ = Describe("Error Helpers", func() {
	Context("when checking error types", func() {
		It("should correctly identify temporary backoff errors", func() {
			// Direct error with constant
			tempErr := errors.New(backoff.TemporaryBackoffError) //nolint:err113 // Test needs dynamic error
			Expect(backoff.IsTemporaryBackoffError(tempErr)).To(BeTrue())
			Expect(backoff.IsPermanentFailureError(tempErr)).To(BeFalse())
			Expect(backoff.IsBackoffError(tempErr)).To(BeTrue())

			// Error with additional text
			tempWithMsg := errors.New(backoff.TemporaryBackoffError + ": submitter busy") //nolint:err113 // Test needs dynamic error
			Expect(backoff.IsTemporaryBackoffError(tempWithMsg)).To(BeTrue())
			Expect(backoff.IsPermanentFailureError(tempWithMsg)).To(BeFalse())
			Expect(backoff.IsBackoffError(tempWithMsg)).To(BeTrue())

			// Wrapped error
			origErr := errors.New("connection refused") //nolint:err113 // Test needs dynamic error
			wrappedErr := fmt.Errorf("%s: %w", backoff.TemporaryBackoffError, origErr)
			Expect(backoff.IsTemporaryBackoffError(wrappedErr)).To(BeTrue())
			Expect(backoff.IsPermanentFailureError(wrappedErr)).To(BeFalse())
			Expect(backoff.IsBackoffError(wrappedErr)).To(BeTrue())
		})

		It("should correctly identify permanent failure errors", func() {
			// Direct error with constant
			permErr := errors.New(backoff.PermanentFailureError) //nolint:err113 // Test needs dynamic error
			Expect(backoff.IsTemporaryBackoffError(permErr)).To(BeFalse())
			Expect(backoff.IsPermanentFailureError(permErr)).To(BeTrue())
			Expect(backoff.IsBackoffError(permErr)).To(BeTrue())

			// Error with additional text
			permWithMsg := errors.New(backoff.PermanentFailureError + ": max retries exceeded") //nolint:err113 // Test needs dynamic error
			Expect(backoff.IsTemporaryBackoffError(permWithMsg)).To(BeFalse())
			Expect(backoff.IsPermanentFailureError(permWithMsg)).To(BeTrue())
			Expect(backoff.IsBackoffError(permWithMsg)).To(BeTrue())
		})

		It("should handle nil and unrelated errors", func() {
			Expect(backoff.IsTemporaryBackoffError(nil)).To(BeFalse())
			Expect(backoff.IsPermanentFailureError(nil)).To(BeFalse())
			Expect(backoff.IsBackoffError(nil)).To(BeFalse())

			otherErr := errors.New("some unrelated error") //nolint:err113 // Test needs dynamic error
			Expect(backoff.IsTemporaryBackoffError(otherErr)).To(BeFalse())
			Expect(backoff.IsPermanentFailureError(otherErr)).To(BeFalse())
			Expect(backoff.IsBackoffError(otherErr)).To(BeFalse())
		})
	})

	Context("when extracting original errors", func() {
		It("should unwrap nested errors down to the root cause", func() {
			rootErr := errors.New("root cause") //nolint:err113 // Test needs dynamic error
			wrapped := fmt.Errorf("%s: %w", backoff.TemporaryBackoffError, rootErr)
			doubleWrapped := fmt.Errorf("outer: %w", wrapped)

			Expect(backoff.ExtractOriginalError(doubleWrapped)).To(Equal(rootErr))
			Expect(backoff.ExtractOriginalError(wrapped)).To(Equal(rootErr))
			Expect(backoff.ExtractOriginalError(rootErr)).To(Equal(rootErr))
			Expect(backoff.ExtractOriginalError(nil)).To(BeNil())
		})
	})
})

var _ = Describe("Error Categories", func() {
	It("should categorize uncategorized errors as transient", func() {
		plain := errors.New("boom") //nolint:err113 // Test needs dynamic error
		categorized := backoff.CategorizeError(plain)

		Expect(backoff.IsTransientError(categorized)).To(BeTrue())
		Expect(backoff.IsIgnoredError(categorized)).To(BeFalse())
		Expect(backoff.IsPermanentError(categorized)).To(BeFalse())
	})

	It("should keep an existing category", func() {
		ignored := backoff.NewIgnoredError(errors.New("ctx cancelled")) //nolint:err113 // Test needs dynamic error

		Expect(backoff.CategorizeError(ignored)).To(Equal(ignored))
		Expect(backoff.IsIgnoredError(ignored)).To(BeTrue())
	})

	It("should unwrap to the original error", func() {
		orig := errors.New("disk full") //nolint:err113 // Test needs dynamic error
		perm := backoff.NewPermanentError(orig)

		Expect(backoff.IsPermanentError(perm)).To(BeTrue())
		Expect(errors.Unwrap(perm)).To(Equal(orig))
	})

	It("should pass nil through CategorizeError", func() {
		Expect(backoff.CategorizeError(nil)).To(BeNil())
	})
})
