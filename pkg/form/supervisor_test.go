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

package form_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/JoshuaAmaju/popform/pkg/field"
	"github.com/JoshuaAmaju/popform/pkg/form"
	"github.com/JoshuaAmaju/popform/pkg/pathstore"
)

var _ = Describe("Supervisor", func() {
	echoSubmitter := func(ctx context.Context, values *pathstore.Store) (any, error) {
		return values.Flatten(), nil
	}

	Context("lifecycle", func() {
		It("should start in the idle state", func() {
			s := startedSupervisor(form.Config{Submitter: echoSubmitter})
			Expect(s.State()).To(Equal(form.OperationalStateIdle))
		})

		It("should ignore commands before Start", func() {
			s := form.NewSupervisor(form.Config{ID: "unstarted", Logger: zap.NewNop().Sugar()})

			s.Submit()
			s.Spawn("name", nil, acceptAll)
			s.SetValue("name", "Ann")
			s.Reset()
			s.Cancel()
			s.Kill("name")

			Expect(s.State()).To(Equal(form.OperationalStateIdle))
			Expect(s.ActorIDs()).To(BeEmpty())
		})

		It("should stop all actors on Stop", func() {
			s := form.NewSupervisor(form.Config{ID: "stoppable", Logger: zap.NewNop().Sugar()})
			Expect(s.Start(context.Background())).To(Succeed())

			s.Spawn("name", nil, acceptAll)
			s.Spawn("age", nil, acceptAll)

			s.Stop()
			Expect(s.Done()).To(BeClosed())
		})

		It("should stop when the start context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			s := form.NewSupervisor(form.Config{ID: "ctx-bound", Logger: zap.NewNop().Sugar()})
			Expect(s.Start(ctx)).To(Succeed())

			cancel()
			Eventually(s.Done()).Should(BeClosed())
		})
	})

	Context("spawning and killing actors", func() {
		It("should register an actor with its seed value and idle state", func() {
			s := startedSupervisor(form.Config{})

			s.Spawn("name", "Ann", acceptAll)

			Expect(s.HasActor("name")).To(BeTrue())
			Expect(s.ActorIDs()).To(Equal([]string{"name"}))

			value, ok := s.Value("name")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("Ann"))

			state, ok := s.FieldState("name")
			Expect(ok).To(BeTrue())
			Expect(state).To(Equal(field.StateIdle))
		})

		It("should fall back to the form's initial value when the seed is nil", func() {
			s := startedSupervisor(form.Config{
				InitialValues: map[string]any{"name": "seeded"},
			})

			s.Spawn("name", nil, acceptAll)

			value, ok := s.Value("name")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("seeded"))
		})

		It("should keep the existing actor when spawning a live id", func() {
			s := startedSupervisor(form.Config{})

			s.Spawn("name", "Ann", acceptAll)
			s.Validate("name")
			Eventually(func() string {
				state, _ := s.FieldState("name")
				return state
			}).Should(Equal(field.StateSuccess))

			s.Spawn("name", "Bea", acceptAll)

			// Same actor, so its success state survives; only the value changes.
			state, _ := s.FieldState("name")
			Expect(state).To(Equal(field.StateSuccess))

			value, _ := s.Value("name")
			Expect(value).To(Equal("Bea"))
			Expect(s.ActorIDs()).To(Equal([]string{"name"}))
		})

		It("should not overwrite the value when re-spawning without a seed", func() {
			s := startedSupervisor(form.Config{})

			s.Spawn("name", "Ann", acceptAll)
			s.Spawn("name", nil, acceptAll)

			value, _ := s.Value("name")
			Expect(value).To(Equal("Ann"))
		})

		It("should remove the actor and its field state on Kill", func() {
			s := startedSupervisor(form.Config{})

			s.Spawn("name", "Ann", acceptAll)
			s.Kill("name")

			Expect(s.HasActor("name")).To(BeFalse())

			_, ok := s.FieldState("name")
			Expect(ok).To(BeFalse())

			// Values survive the actor.
			value, ok := s.Value("name")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("Ann"))
		})

		It("should treat Kill for an unknown id as a no-op", func() {
			s := startedSupervisor(form.Config{})

			s.Spawn("name", "Ann", acceptAll)
			s.Kill("bogus")

			Expect(s.ActorIDs()).To(Equal([]string{"name"}))
			Expect(s.State()).To(Equal(form.OperationalStateIdle))
		})
	})

	Context("value updates", func() {
		It("should write the value and clear the field's error", func() {
			s := startedSupervisor(form.Config{})
			s.Spawn("name", "", rejectWith(errors.New("name is required")))

			s.Validate("name")
			Eventually(func() bool {
				_, ok := s.FieldError("name")
				return ok
			}).Should(BeTrue())

			s.SetValue("name", "Ann")

			value, _ := s.Value("name")
			Expect(value).To(Equal("Ann"))

			_, ok := s.FieldError("name")
			Expect(ok).To(BeFalse())

			Eventually(func() string {
				state, _ := s.FieldState("name")
				return state
			}).Should(Equal(field.StateIdle))
		})

		It("should update values for fields without actors", func() {
			s := startedSupervisor(form.Config{})

			s.SetValue("address.city", "Lagos")

			value, ok := s.Value("address.city")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal("Lagos"))
		})
	})

	Context("single-field validation", func() {
		It("should record the validator's error", func() {
			verr := errors.New("too short")
			s := startedSupervisor(form.Config{})
			s.Spawn("name", "A", rejectWith(verr))

			s.Validate("name")

			Eventually(func() string {
				state, _ := s.FieldState("name")
				return state
			}).Should(Equal(field.StateError))

			fieldErr, ok := s.FieldError("name")
			Expect(ok).To(BeTrue())
			Expect(fieldErr.Error()).To(Equal("too short"))

			// A single-field validation never moves the form itself.
			Expect(s.State()).To(Equal(form.OperationalStateIdle))
		})

		It("should validate an overriding value and store it on success", func() {
			s := startedSupervisor(form.Config{})
			s.Spawn("name", "old", acceptAll)

			s.Validate("name", "new")

			Eventually(func() any {
				value, _ := s.Value("name")
				return value
			}).Should(Equal("new"))
		})

		It("should ignore Validate for an unknown id", func() {
			s := startedSupervisor(form.Config{})

			s.Validate("bogus")

			Expect(s.State()).To(Equal(form.OperationalStateIdle))
		})
	})

	Context("submitting with live actors", func() {
		It("should run a passing validation round and submit", func() {
			s := startedSupervisor(form.Config{Submitter: echoSubmitter})
			s.Spawn("name", "Ann", acceptAll)
			s.Spawn("age", 21, acceptAll)

			s.Submit()

			Eventually(s.State).Should(Equal(form.OperationalStateSubmitted))

			data, ok := s.Data().(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(data).To(HaveKeyWithValue("name", "Ann"))
			Expect(data).To(HaveKeyWithValue("age", 21))
			Expect(s.DataUpdatedAt()).NotTo(BeZero())

			state, _ := s.FieldState("name")
			Expect(state).To(Equal(field.StateSuccess))
		})

		It("should expose all form values to each validator", func() {
			crossField := func(ctx context.Context, value any, values *pathstore.Store) error {
				age, ok := values.Get("age")
				if !ok {
					return errors.New("age missing")
				}
				if age.(int) < 18 {
					return errors.New("must be an adult")
				}
				return nil
			}

			s := startedSupervisor(form.Config{Submitter: echoSubmitter})
			s.Spawn("name", "Ann", crossField)
			s.Spawn("age", 21, acceptAll)

			s.Submit()

			Eventually(s.State).Should(Equal(form.OperationalStateSubmitted))
		})

		It("should return to idle with errors when any field fails", func() {
			var submitted atomic.Int32
			s := startedSupervisor(form.Config{
				Submitter: func(ctx context.Context, values *pathstore.Store) (any, error) {
					submitted.Add(1)
					return nil, nil
				},
			})
			s.Spawn("name", "Ann", acceptAll)
			s.Spawn("age", 12, rejectWith(errors.New("must be an adult")))

			s.Submit()

			Eventually(s.State).Should(Equal(form.OperationalStateIdle))

			fieldErr, ok := s.FieldError("age")
			Expect(ok).To(BeTrue())
			Expect(fieldErr.Error()).To(Equal("must be an adult"))

			// The passing field keeps its success state.
			state, _ := s.FieldState("name")
			Expect(state).To(Equal(field.StateSuccess))

			Consistently(submitted.Load).Should(BeZero())
		})

		It("should decide the round independently of report order", func() {
			first := make(chan struct{})
			second := make(chan struct{})

			s := startedSupervisor(form.Config{Submitter: echoSubmitter})
			s.Spawn("first", "a", gatedValidator(first))
			s.Spawn("second", "b", gatedValidator(second))

			s.Submit()
			Expect(s.State()).To(Equal(form.OperationalStateValidating))

			// Release in reverse spawn order; the barrier waits for both.
			close(second)
			Consistently(s.State, 100*time.Millisecond).Should(Equal(form.OperationalStateValidating))

			close(first)
			Eventually(s.State).Should(Equal(form.OperationalStateSubmitted))
		})

		It("should drop commands while a validation round is in flight", func() {
			gate := make(chan struct{})
			s := startedSupervisor(form.Config{Submitter: echoSubmitter})
			s.Spawn("name", "Ann", gatedValidator(gate))

			s.Submit()
			Expect(s.State()).To(Equal(form.OperationalStateValidating))

			// None of these may land mid-round.
			s.Spawn("age", 21, acceptAll)
			s.Kill("name")
			s.SetValue("name", "Bea")
			s.Reset()

			Expect(s.ActorIDs()).To(Equal([]string{"name"}))
			value, _ := s.Value("name")
			Expect(value).To(Equal("Ann"))

			close(gate)
			Eventually(s.State).Should(Equal(form.OperationalStateSubmitted))
		})
	})

	Context("submitting without actors", func() {
		It("should skip validation and submit directly", func() {
			s := startedSupervisor(form.Config{
				InitialValues: map[string]any{"token": "abc"},
				Submitter:     echoSubmitter,
			})

			s.Submit()

			Eventually(s.State).Should(Equal(form.OperationalStateSubmitted))

			data, ok := s.Data().(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(data).To(HaveKeyWithValue("token", "abc"))
		})

		It("should fail the submission when no submitter is configured", func() {
			s := startedSupervisor(form.Config{})

			s.Submit()

			Eventually(s.State).Should(Equal(form.OperationalStateError))
			Expect(s.LastSubmissionError()).To(MatchError(form.ErrNoSubmitter))
		})
	})

	Context("failure accounting", func() {
		It("should count consecutive failures and reset on success", func() {
			var fail atomic.Bool
			fail.Store(true)

			s := startedSupervisor(form.Config{
				Submitter: func(ctx context.Context, values *pathstore.Store) (any, error) {
					if fail.Load() {
						return nil, errors.New("backend unavailable")
					}
					return "ok", nil
				},
			})

			for i := 1; i <= 3; i++ {
				s.Submit()
				Eventually(s.State).Should(Equal(form.OperationalStateError))
				Expect(s.FailureCount()).To(Equal(i))
			}

			Expect(s.RetryDelay()).To(BeNumerically(">", 0))
			Expect(s.ErrorUpdatedAt()).NotTo(BeZero())
			Expect(s.IsPermanentlyFailed()).To(BeFalse())

			fail.Store(false)
			s.Submit()

			Eventually(s.State).Should(Equal(form.OperationalStateSubmitted))
			Expect(s.FailureCount()).To(BeZero())
			Expect(s.RetryDelay()).To(BeZero())
			Expect(s.Data()).To(Equal("ok"))
		})

		It("should clear the stored error when leaving the error state", func() {
			s := startedSupervisor(form.Config{})

			s.Submit() // no submitter configured
			Eventually(s.State).Should(Equal(form.OperationalStateError))
			Expect(s.LastSubmissionError()).To(HaveOccurred())

			s.Reset()

			Expect(s.State()).To(Equal(form.OperationalStateIdle))
			Expect(s.LastSubmissionError()).To(BeNil())
		})
	})

	Context("cancellation", func() {
		It("should abort a validation round", func() {
			gate := make(chan struct{})
			defer close(gate)

			s := startedSupervisor(form.Config{Submitter: echoSubmitter})
			s.Spawn("name", "Ann", gatedValidator(gate))

			s.Submit()
			Expect(s.State()).To(Equal(form.OperationalStateValidating))

			s.Cancel()

			Expect(s.State()).To(Equal(form.OperationalStateIdle))
		})

		It("should discard the completion of a cancelled submission", func() {
			release := make(chan struct{})
			s := startedSupervisor(form.Config{
				Submitter: func(ctx context.Context, values *pathstore.Store) (any, error) {
					select {
					case <-release:
						return "late result", nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				},
			})

			s.Submit()
			Eventually(s.State).Should(Equal(form.OperationalStateSubmitting))

			s.Cancel()
			Expect(s.State()).To(Equal(form.OperationalStateIdle))

			close(release)

			Consistently(s.State, 200*time.Millisecond).Should(Equal(form.OperationalStateIdle))
			Expect(s.Data()).To(BeNil())
			Expect(s.FailureCount()).To(BeZero())
		})

		It("should ignore Cancel outside validating and submitting", func() {
			s := startedSupervisor(form.Config{})

			s.Cancel()

			Expect(s.State()).To(Equal(form.OperationalStateIdle))
		})
	})

	Context("resetting", func() {
		It("should restore the initial configuration", func() {
			s := startedSupervisor(form.Config{
				InitialValues: map[string]any{"name": "seed"},
				InitialErrors: map[string]any{"email": "email is required"},
			})

			// Fail a submission while no actors are live, so the submit skips
			// validation and ends in the error state.
			s.Submit() // no submitter configured
			Eventually(s.State).Should(Equal(form.OperationalStateError))
			Expect(s.FailureCount()).To(Equal(1))

			// The error state still accepts reconfiguration.
			s.Spawn("name", nil, acceptAll)
			s.SetValue("name", "typed")
			s.SetValue("email", "a@b.example") // clears the seeded error

			_, ok := s.FieldError("email")
			Expect(ok).To(BeFalse())

			s.Reset()

			Expect(s.State()).To(Equal(form.OperationalStateIdle))

			value, _ := s.Value("name")
			Expect(value).To(Equal("seed"))

			fieldErr, ok := s.FieldError("email")
			Expect(ok).To(BeTrue())
			Expect(fieldErr.Error()).To(Equal("email is required"))

			Expect(s.Data()).To(BeNil())
			Expect(s.DataUpdatedAt()).To(BeZero())
			Expect(s.ErrorUpdatedAt()).To(BeZero())
			Expect(s.FailureCount()).To(BeZero())

			// Actors survive the reset and return to idle.
			Expect(s.HasActor("name")).To(BeTrue())
			Eventually(func() string {
				state, _ := s.FieldState("name")
				return state
			}).Should(Equal(field.StateIdle))
		})
	})

	Context("snapshots", func() {
		It("should capture a serializable copy of the form state", func() {
			s := startedSupervisor(form.Config{
				ID:        "snapshot-form",
				Submitter: echoSubmitter,
			})
			s.Spawn("name", "Ann", acceptAll)
			s.Spawn("age", 12, rejectWith(errors.New("must be an adult")))

			s.Submit()
			Eventually(s.State).Should(Equal(form.OperationalStateIdle))

			snapshot := s.Snapshot()
			Expect(snapshot.ID).To(Equal("snapshot-form"))
			Expect(snapshot.State).To(Equal(form.OperationalStateIdle))
			Expect(snapshot.Values).To(HaveKeyWithValue("name", "Ann"))
			Expect(snapshot.Errors).To(HaveKeyWithValue("age", "must be an adult"))
			Expect(snapshot.FieldStates).To(HaveKeyWithValue("name", field.StateSuccess))
			Expect(snapshot.ActorIDs).To(Equal([]string{"age", "name"}))

			out, err := snapshot.JSON()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(ContainSubstring(`"state":"idle"`))
		})
	})
})
