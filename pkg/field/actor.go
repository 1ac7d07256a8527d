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

package field

import (
	"context"
	"sync"

	"github.com/looplab/fsm"

	internalfsm "github.com/JoshuaAmaju/popform/internal/fsm"
	"github.com/JoshuaAmaju/popform/pkg/logger"
)

// Operational state constants for a field actor.
const (
	// StateIdle is the state before any validation has run
	StateIdle = "idle"
	// StateValidating is the state while the validator is running
	StateValidating = "validating"
	// StateSuccess is the state after a successful validation
	StateSuccess = "success"
	// StateError is the state after a failed validation
	StateError = "error"
)

// Event constants for field actor state transitions
const (
	EventValidate = "validate"
	EventResolve  = "resolve"
	EventReject   = "reject"
	EventChange   = "change"
	EventReset    = "reset"
)

// IsOperationalState returns whether the given state is a field actor state
func IsOperationalState(state string) bool {
	switch state {
	case StateIdle,
		StateValidating,
		StateSuccess,
		StateError:
		return true
	}
	return false
}

const defaultInboxSize = 16

// Actor is an independently running state machine owning one field's value
// and validation lifecycle. It consumes Messages from its inbox in send order
// and emits Results on the supervisor's result channel.
type Actor struct {
	id string

	initialValue any
	initialErr   error

	value     any
	err       error
	validator Validator

	machine *internalfsm.BaseFSMInstance

	inbox   chan Message
	results chan<- Result

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewActor creates an actor for the given field id. The results channel is
// owned by the supervisor; every actor of a form shares it.
func NewActor(id string, value any, initialErr error, validator Validator, results chan<- Result) *Actor {
	cfg := internalfsm.BaseFSMInstanceConfig{
		ID:           id,
		InitialState: StateIdle,
		Transitions: []fsm.EventDesc{
			{Name: EventValidate, Src: []string{StateIdle, StateSuccess, StateError}, Dst: StateValidating},
			{Name: EventResolve, Src: []string{StateValidating}, Dst: StateSuccess},
			{Name: EventReject, Src: []string{StateValidating}, Dst: StateError},
			{Name: EventChange, Src: []string{StateIdle, StateSuccess, StateError}, Dst: StateIdle},
			{Name: EventReset, Src: []string{StateIdle, StateValidating, StateSuccess, StateError}, Dst: StateIdle},
		},
	}

	return &Actor{
		id:           id,
		initialValue: value,
		initialErr:   initialErr,
		value:        value,
		err:          initialErr,
		validator:    validator,
		machine:      internalfsm.NewBaseFSMInstance(cfg, logger.For(logger.ComponentFieldActor).Named(id)),
		inbox:        make(chan Message, defaultInboxSize),
		results:      results,
		done:         make(chan struct{}),
	}
}

// ID returns the field id this actor owns.
func (a *Actor) ID() string {
	return a.id
}

// GetCurrentFSMState returns the current state of the actor's FSM.
func (a *Actor) GetCurrentFSMState() string {
	return a.machine.GetCurrentFSMState()
}

// Start launches the actor's run loop. Subsequent calls are no-ops.
func (a *Actor) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		go a.run(runCtx)
	})
}

// Stop terminates the run loop and waits for it to drain.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
			<-a.done
		}
	})
}

// Send delivers a message to the actor's inbox. It reports false if the inbox
// is full, which only happens when the actor has stopped consuming.
func (a *Actor) Send(msg Message) bool {
	select {
	case a.inbox <- msg:
		return true
	default:
		a.machine.GetLogger().Warnf("Inbox full for field actor %s, dropping %T", a.id, msg)
		return false
	}
}

func (a *Actor) run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.inbox:
			a.handle(ctx, msg)
		}
	}
}

func (a *Actor) handle(ctx context.Context, msg Message) {
	log := a.machine.GetLogger()

	switch m := msg.(type) {
	case ValidateMessage:
		a.validate(ctx, m)
	case ChangeMessage:
		a.value = m.Value
		a.err = nil
		if err := a.machine.SendEvent(ctx, EventChange); err != nil {
			log.Debugf("Change event not applied for %s: %v", a.id, err)
			return
		}
		a.emit(ctx, IdleResult{ID: a.id})
	case ResetMessage:
		a.value = a.initialValue
		a.err = a.initialErr
		if err := a.machine.SendEvent(ctx, EventReset); err != nil {
			log.Debugf("Reset event not applied for %s: %v", a.id, err)
			return
		}
		a.emit(ctx, IdleResult{ID: a.id})
	default:
		log.Warnf("Unknown message %T for field actor %s", msg, a.id)
	}
}

func (a *Actor) validate(ctx context.Context, msg ValidateMessage) {
	log := a.machine.GetLogger()

	if err := a.machine.SendEvent(ctx, EventValidate); err != nil {
		log.Debugf("Validate event not applied for %s: %v", a.id, err)
		return
	}
	a.emit(ctx, ValidatingResult{ID: a.id})

	value := a.value
	if msg.HasValue {
		value = msg.Value
	}

	// A nil validator accepts everything; the supervisor still gets a
	// success report so the barrier can complete.
	var verr error
	if a.validator != nil {
		verr = a.validator(ctx, value, msg.Values)
	}

	if verr != nil {
		a.err = verr
		if err := a.machine.SendEvent(ctx, EventReject); err != nil {
			log.Debugf("Reject event not applied for %s: %v", a.id, err)
			return
		}
		a.emit(ctx, ErrorResult{ID: a.id, Err: verr})
		return
	}

	a.value = value
	a.err = nil
	if err := a.machine.SendEvent(ctx, EventResolve); err != nil {
		log.Debugf("Resolve event not applied for %s: %v", a.id, err)
		return
	}
	a.emit(ctx, SuccessResult{ID: a.id, Value: value, HasValue: true})
}

func (a *Actor) emit(ctx context.Context, res Result) {
	select {
	case a.results <- res:
	case <-ctx.Done():
	}
}
