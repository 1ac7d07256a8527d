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

package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// ExpectedMaxExecutionTimePerEvent is the minimum context lifetime required
// before a transition is allowed to start. Starting a transition that the
// context cannot outlive leaves the FSM mid-transition, which blocks all
// further events.
const ExpectedMaxExecutionTimePerEvent = 10 * time.Millisecond

// BaseFSMInstance implements the shared state machine logic for the form
// supervisor and the field actors. Concrete components embed or wrap this and
// contribute their transitions and callbacks.
type BaseFSMInstance struct {
	cfg BaseFSMInstanceConfig

	// mu is a mutex for protecting concurrent access to fields
	mu sync.RWMutex

	// fsm is the finite state machine that manages instance state
	fsm *fsm.FSM

	// Registered "enter_state"/"leave_state" callbacks, for store mutation,
	// message fan-out and logging.
	callbacks map[string]fsm.Callback

	// logger is the logger for the FSM
	logger *zap.SugaredLogger
}

// BaseFSMInstanceConfig holds parameters for setting up the base FSM.
type BaseFSMInstanceConfig struct {
	ID           string
	InitialState string

	// Transitions are the allowed state transitions
	Transitions []fsm.EventDesc
}

// NewBaseFSMInstance sets up a new FSM with the supplied transitions and a
// callback dispatcher keyed by "enter_<state>" and "leave_<state>".
func NewBaseFSMInstance(cfg BaseFSMInstanceConfig, logger *zap.SugaredLogger) *BaseFSMInstance {
	baseInstance := &BaseFSMInstance{
		cfg:       cfg,
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	baseInstance.fsm = fsm.NewFSM(
		cfg.InitialState,
		fsm.Events(cfg.Transitions),
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				// Call registered callback for this state if exists
				if cb, ok := baseInstance.callbacks["enter_"+e.Dst]; ok {
					cb(ctx, e)
				}
			},
			"leave_state": func(ctx context.Context, e *fsm.Event) {
				if cb, ok := baseInstance.callbacks["leave_"+e.Src]; ok {
					cb(ctx, e)
				}
			},
		},
	)

	return baseInstance
}

// AddCallback adds a callback for a given event name
func (s *BaseFSMInstance) AddCallback(eventName string, callback fsm.Callback) {
	s.callbacks[eventName] = callback
}

// GetCurrentFSMState returns the current state of the FSM
func (s *BaseFSMInstance) GetCurrentFSMState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fsm.Current()
}

// SetCurrentFSMState sets the current state of the FSM
// This should only be called in tests
func (s *BaseFSMInstance) SetCurrentFSMState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fsm.SetState(state)
}

// Is reports whether the FSM is currently in the given state
func (s *BaseFSMInstance) Is(state string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fsm.Is(state)
}

// SendEvent sends an event to the FSM and returns whether the event was processed.
//
// Context expiration during FSM transitions can lead to deadlocks: when a
// context expires mid-transition, the FSM's internal transition state remains
// set and future events fail with "event X inappropriate because previous
// transition did not complete". SendEvent therefore rejects events when the
// context is already cancelled or has insufficient time remaining.
//
// A transition to the state the FSM is already in is not an error for our
// callers (e.g. a reset issued while idle); looplab reports it as
// NoTransitionError and SendEvent swallows it.
func (s *BaseFSMInstance) SendEvent(ctx context.Context, eventName string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < ExpectedMaxExecutionTimePerEvent {
			return fmt.Errorf("context deadline exceeded")
		}
	}

	err := s.fsm.Event(ctx, eventName, args...)
	if err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
	}

	return err
}

func (s *BaseFSMInstance) GetID() string {
	return s.cfg.ID
}

func (s *BaseFSMInstance) GetLogger() *zap.SugaredLogger {
	return s.logger
}
