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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	internalfsm "github.com/JoshuaAmaju/popform/internal/fsm"
	"github.com/JoshuaAmaju/popform/pkg/backoff"
	"github.com/JoshuaAmaju/popform/pkg/field"
	"github.com/JoshuaAmaju/popform/pkg/logger"
	"github.com/JoshuaAmaju/popform/pkg/metrics"
	"github.com/JoshuaAmaju/popform/pkg/pathstore"
)

// Supervisor is the top-level state machine coordinating a form's field
// actors. It relays validation requests, aggregates their results behind a
// per-round barrier, and drives the submitter with failure accounting.
//
// All context mutation is serialized: every command and actor result is
// processed to completion under one mutex before the next is accepted. Field
// actors run concurrently and report back through a shared result channel
// consumed by the supervisor's run loop.
type Supervisor struct {
	mu sync.Mutex

	id        string
	machine   *internalfsm.BaseFSMInstance
	logger    *zap.SugaredLogger
	submitter Submitter

	formCtx       FormContext
	initialValues *pathstore.Store
	initialErrors *pathstore.Store

	registry *ActorRegistry
	barrier  *validationBarrier
	retry    *backoff.RetryTracker

	results     chan field.Result
	submissions chan submissionResult

	// currentAttempt tags the single outstanding submission; completions
	// carrying any other tag are stale and get discarded.
	currentAttempt uuid.UUID
	attemptCancel  context.CancelFunc

	runCtx  context.Context
	runStop context.CancelFunc
	started bool
	done    chan struct{}
}

// NewSupervisor creates a Supervisor for one form instance. Call Start before
// issuing commands.
func NewSupervisor(cfg Config) *Supervisor {
	id := cfg.ID
	if id == "" {
		id = "form"
	}

	log := cfg.Logger
	if log == nil {
		log = logger.For(logger.ComponentFormSupervisor).Named(id)
	}

	resultBuffer := cfg.ResultBuffer
	if resultBuffer <= 0 {
		resultBuffer = DefaultResultBuffer
	}

	s := &Supervisor{
		id:            id,
		logger:        log,
		submitter:     cfg.Submitter,
		initialValues: pathstore.FromMap(cfg.InitialValues),
		initialErrors: pathstore.FromMap(cfg.InitialErrors),
		registry:      NewActorRegistry(log),
		barrier:       newValidationBarrier(),
		retry:         backoff.NewRetryTracker(id, log),
		results:       make(chan field.Result, resultBuffer),
		submissions:   make(chan submissionResult, 1),
		done:          make(chan struct{}),
	}

	s.formCtx = FormContext{
		Values:      s.initialValues.Clone(),
		Errors:      s.initialErrors.Clone(),
		FieldStates: pathstore.New(),
	}

	s.machine = internalfsm.NewBaseFSMInstance(internalfsm.BaseFSMInstanceConfig{
		ID:           id,
		InitialState: OperationalStateIdle,
		Transitions: []fsm.EventDesc{
			// A submit runs a validation round first, unless no actors are
			// live, in which case it goes straight to submitting.
			{Name: EventSubmit, Src: []string{OperationalStateIdle, OperationalStateSubmitted, OperationalStateError}, Dst: OperationalStateValidating},
			{Name: EventSubmitDirect, Src: []string{OperationalStateIdle, OperationalStateSubmitted, OperationalStateError}, Dst: OperationalStateSubmitting},

			// Barrier decisions.
			{Name: EventValidationPassed, Src: []string{OperationalStateValidating}, Dst: OperationalStateSubmitting},
			{Name: EventValidationFailed, Src: []string{OperationalStateValidating}, Dst: OperationalStateIdle},

			// Submission outcomes.
			{Name: EventSubmitSucceeded, Src: []string{OperationalStateSubmitting}, Dst: OperationalStateSubmitted},
			{Name: EventSubmitFailed, Src: []string{OperationalStateSubmitting}, Dst: OperationalStateError},

			// Cancellation and reset.
			{Name: EventCancel, Src: []string{OperationalStateValidating, OperationalStateSubmitting}, Dst: OperationalStateIdle},
			{Name: EventReset, Src: []string{OperationalStateIdle, OperationalStateSubmitted, OperationalStateError}, Dst: OperationalStateIdle},
		},
	}, log)

	s.registerCallbacks()

	metrics.InitErrorCounter(metrics.ComponentFormSupervisor, id)

	return s
}

// registerCallbacks registers callback functions for FSM state transitions.
// Callbacks run while the supervisor mutex is held; they must not call the
// locked public API.
func (s *Supervisor) registerCallbacks() {
	s.machine.AddCallback("enter_"+OperationalStateValidating, func(ctx context.Context, e *fsm.Event) {
		metrics.ObserveTransition(s.id, e.Src, e.Dst)
		s.barrier.clear()
		s.broadcastValidate()
	})

	s.machine.AddCallback("leave_"+OperationalStateValidating, func(ctx context.Context, e *fsm.Event) {
		s.barrier.clear()
	})

	s.machine.AddCallback("enter_"+OperationalStateSubmitting, func(ctx context.Context, e *fsm.Event) {
		metrics.ObserveTransition(s.id, e.Src, e.Dst)
		s.startSubmission()
	})

	s.machine.AddCallback("leave_"+OperationalStateSubmitting, func(ctx context.Context, e *fsm.Event) {
		s.clearAttempt()
	})

	s.machine.AddCallback("enter_"+OperationalStateSubmitted, func(ctx context.Context, e *fsm.Event) {
		metrics.ObserveTransition(s.id, e.Src, e.Dst)
		s.logger.Infof("Form %s submitted", s.id)
		s.retry.RecordSuccess()
	})

	s.machine.AddCallback("enter_"+OperationalStateError, func(ctx context.Context, e *fsm.Event) {
		metrics.ObserveTransition(s.id, e.Src, e.Dst)
		s.logger.Warnf("Submission failed for form %s: %v", s.id, s.formCtx.Err)
		s.retry.RecordFailure(s.formCtx.Err)
	})

	s.machine.AddCallback("leave_"+OperationalStateError, func(ctx context.Context, e *fsm.Event) {
		// The stored failure only describes the aborted attempt; it does not
		// survive leaving the error state. ErrorUpdatedAt stays for callers.
		s.formCtx.Err = nil
	})

	s.machine.AddCallback("enter_"+OperationalStateIdle, func(ctx context.Context, e *fsm.Event) {
		metrics.ObserveTransition(s.id, e.Src, e.Dst)
	})
}

// Start launches the supervisor's run loop. The supervisor stops when ctx is
// cancelled or Stop is called; all live actors are stopped with it.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.runStop = cancel
	s.started = true

	go s.run()

	s.logger.Infof("Form supervisor %s started", s.id)

	return nil
}

// Stop terminates the run loop and all live actors, then waits for the loop
// to drain.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	stop := s.runStop
	s.mu.Unlock()

	stop()
	<-s.done
}

// Done is closed once the run loop has terminated.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *Supervisor) run() {
	defer close(s.done)

	for {
		select {
		case <-s.runCtx.Done():
			s.mu.Lock()
			s.registry.StopAll()
			metrics.SetLiveActors(s.id, 0)
			s.mu.Unlock()
			s.logger.Infof("Form supervisor %s stopped", s.id)
			return
		case res := <-s.results:
			s.handleActorResult(res)
		case sub := <-s.submissions:
			s.handleSubmissionResult(sub)
		}
	}
}

// fire sends an event to the state machine. Callers hold the mutex.
func (s *Supervisor) fire(event string) {
	if err := s.machine.SendEvent(s.runCtx, event); err != nil {
		s.logger.Errorf("Event %s not applied for form %s: %v", event, s.id, err)
		metrics.IncErrorCount(metrics.ComponentFormSupervisor, s.id)
	}
}

// broadcastValidate sends the current values to every live actor. Called on
// entering the validating state, with the mutex held.
func (s *Supervisor) broadcastValidate() {
	values := s.formCtx.Values.Clone()
	s.registry.Each(func(actor *field.Actor) {
		actor.Send(field.ValidateMessage{Values: values})
	})
	s.logger.Debugf("Validation round started for form %s with %d actors", s.id, s.registry.Len())
}

// acceptsCommands reports whether the current state processes reconfiguration
// commands. Mid-round and mid-submission the supervisor only accepts cancel.
func (s *Supervisor) acceptsCommands() bool {
	switch s.machine.GetCurrentFSMState() {
	case OperationalStateIdle, OperationalStateSubmitted, OperationalStateError:
		return true
	}
	return false
}

// State returns the supervisor's current state name.
func (s *Supervisor) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.GetCurrentFSMState()
}

// Values returns a deep copy of the values store.
func (s *Supervisor) Values() *pathstore.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.Values.Clone()
}

// Errors returns a deep copy of the errors store.
func (s *Supervisor) Errors() *pathstore.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.Errors.Clone()
}

// FieldStates returns a deep copy of the per-field state store.
func (s *Supervisor) FieldStates() *pathstore.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.FieldStates.Clone()
}

// Value returns the current value for a field id.
func (s *Supervisor) Value(id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.Values.Get(id)
}

// FieldError returns the current validation error for a field id.
func (s *Supervisor) FieldError(id string) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.formCtx.Errors.Get(id)
	if !ok {
		return nil, false
	}

	return toError(value), true
}

// FieldState returns the last reported actor state for a field id.
func (s *Supervisor) FieldState(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.formCtx.FieldStates.Get(id)
	if !ok {
		return "", false
	}
	state, ok := value.(string)

	return state, ok
}

// FailureCount returns the number of consecutive failed submission attempts.
func (s *Supervisor) FailureCount() int {
	return s.retry.Failures()
}

// RetryDelay suggests how long callers should wait before retrying a failed
// submission. Zero when the last submission succeeded.
func (s *Supervisor) RetryDelay() time.Duration {
	return s.retry.NextDelay()
}

// IsPermanentlyFailed reports whether the submission retry budget is
// exhausted. The supervisor itself stays usable; this is a hint for
// caller-driven circuit breaking.
func (s *Supervisor) IsPermanentlyFailed() bool {
	return s.retry.IsPermanentlyFailed()
}

// Data returns the last successful submission result.
func (s *Supervisor) Data() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.Data
}

// DataUpdatedAt returns the time of the last successful submission.
func (s *Supervisor) DataUpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.DataUpdatedAt
}

// LastSubmissionError returns the stored submission failure, if the
// supervisor is currently in the error state.
func (s *Supervisor) LastSubmissionError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.Err
}

// ErrorUpdatedAt returns the time of the last submission failure.
func (s *Supervisor) ErrorUpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formCtx.ErrorUpdatedAt
}

// HasActor reports whether a live actor exists for the field id.
func (s *Supervisor) HasActor(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Has(id)
}

// ActorIDs returns the ids of all live actors in sorted order.
func (s *Supervisor) ActorIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.IDs()
}

// toError normalizes stored error values; seeds may be plain strings.
func toError(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}
