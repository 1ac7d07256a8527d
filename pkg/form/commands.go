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
	"time"

	"github.com/JoshuaAmaju/popform/pkg/field"
	"github.com/JoshuaAmaju/popform/pkg/metrics"
)

// Commands are processed synchronously against the form context. A command
// whose guard fails, or that arrives in a state that does not accept it, is
// dropped without surfacing an error: absence of an actor is not an error
// condition for the caller, and mid-round reconfiguration is not queued for
// replay.

// Submit starts a submission. With live actors it opens a validation round;
// without any it proceeds straight to submitting.
func (s *Supervisor) Submit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncCommand(s.id, "submit")

	if !s.started {
		s.logger.Warnf("Submit before Start for form %s", s.id)
		return
	}
	if !s.acceptsCommands() {
		s.logger.Debugf("Submit ignored in state %s for form %s", s.machine.GetCurrentFSMState(), s.id)
		return
	}

	if s.registry.Len() == 0 {
		s.fire(EventSubmitDirect)
		return
	}
	s.fire(EventSubmit)
}

// Cancel aborts an in-flight validation round or submission attempt and
// returns to idle. A completion arriving for a cancelled attempt is
// discarded. Cancel in any other state is ignored.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncCommand(s.id, "cancel")

	if !s.started {
		return
	}

	switch s.machine.GetCurrentFSMState() {
	case OperationalStateValidating:
		s.fire(EventCancel)
	case OperationalStateSubmitting:
		metrics.IncSubmission(s.id, "cancelled")
		s.fire(EventCancel)
	default:
		s.logger.Debugf("Cancel ignored in state %s for form %s", s.machine.GetCurrentFSMState(), s.id)
	}
}

// Reset restores the initial values and errors, clears all submission
// bookkeeping and asks every live actor to restart its internal state.
// Actors are not killed by a reset.
func (s *Supervisor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncCommand(s.id, "reset")

	if !s.started {
		return
	}
	if !s.acceptsCommands() {
		s.logger.Debugf("Reset ignored in state %s for form %s", s.machine.GetCurrentFSMState(), s.id)
		return
	}

	s.registry.Each(func(actor *field.Actor) {
		actor.Send(field.ResetMessage{})
	})

	s.formCtx.Values = s.initialValues.Clone()
	s.formCtx.Errors = s.initialErrors.Clone()
	s.formCtx.Data = nil
	s.formCtx.DataUpdatedAt = time.Time{}
	s.formCtx.Err = nil
	s.formCtx.ErrorUpdatedAt = time.Time{}
	s.retry.Reset()

	s.fire(EventReset)
}

// SetValue writes a field's value, clears its error and forwards a change
// message to its actor if one is live.
func (s *Supervisor) SetValue(id string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncCommand(s.id, "set")

	if !s.started {
		return
	}
	if !s.acceptsCommands() {
		s.logger.Debugf("Set ignored in state %s for form %s", s.machine.GetCurrentFSMState(), s.id)
		return
	}

	s.formCtx.Values.Set(id, value)
	s.formCtx.Errors.Delete(id)

	if actor, ok := s.registry.Get(id); ok {
		actor.Send(field.ChangeMessage{Value: value})
	}
}

// Validate asks a single live actor to validate, optionally with a value
// replacing its current one. Unknown ids are dropped by the guard.
func (s *Supervisor) Validate(id string, value ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncCommand(s.id, "validate")

	if !s.started {
		return
	}
	if !s.acceptsCommands() {
		s.logger.Debugf("Validate ignored in state %s for form %s", s.machine.GetCurrentFSMState(), s.id)
		return
	}

	actor, ok := s.registry.Get(id)
	if !ok {
		s.logger.Debugf("Validate ignored, no live actor for id %q", id)
		return
	}

	s.formCtx.Errors.Delete(id)

	msg := field.ValidateMessage{Values: s.formCtx.Values.Clone()}
	if len(value) > 0 {
		msg.Value = value[0]
		msg.HasValue = true
	}
	actor.Send(msg)
}

// Spawn creates, starts and registers an actor for the field id, seeded with
// value or, when value is nil, with the form's initial value for the id.
// Spawning an id that already has a live actor keeps the existing actor's
// internal state and only overwrites the seeded value.
func (s *Supervisor) Spawn(id string, value any, validator field.Validator) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncCommand(s.id, "spawn")

	if !s.started {
		s.logger.Warnf("Spawn before Start for form %s", s.id)
		return
	}
	if !s.acceptsCommands() {
		s.logger.Debugf("Spawn ignored in state %s for form %s", s.machine.GetCurrentFSMState(), s.id)
		return
	}

	if s.registry.Has(id) {
		if value != nil {
			s.formCtx.Values.Set(id, value)
		}
		s.logger.Debugf("Spawn for live id %q keeps the existing actor", id)
		return
	}

	seed := value
	if seed == nil {
		if initial, ok := s.initialValues.Get(id); ok {
			seed = initial
		}
	}

	var initialErr error
	if stored, ok := s.initialErrors.Get(id); ok {
		initialErr = toError(stored)
	}

	actor := field.NewActor(id, seed, initialErr, validator, s.results)
	actor.Start(s.runCtx)
	if err := s.registry.Register(actor); err != nil {
		actor.Stop()
		s.logger.Errorf("Spawn failed for id %q: %v", id, err)
		metrics.IncErrorCount(metrics.ComponentActorRegistry, s.id)
		return
	}

	s.formCtx.Values.Set(id, seed)
	s.formCtx.FieldStates.Set(id, field.StateIdle)
	metrics.SetLiveActors(s.id, s.registry.Len())

	s.logger.Debugf("Spawned actor for field %q", id)
}

// Kill stops and deregisters the actor for the field id and removes its
// field state entry. Killing an unknown id is a silent no-op.
func (s *Supervisor) Kill(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics.IncCommand(s.id, "kill")

	if !s.started {
		return
	}
	if !s.acceptsCommands() {
		s.logger.Debugf("Kill ignored in state %s for form %s", s.machine.GetCurrentFSMState(), s.id)
		return
	}

	if !s.registry.Remove(id) {
		return
	}

	s.formCtx.FieldStates.Delete(id)
	metrics.SetLiveActors(s.id, s.registry.Len())

	s.logger.Debugf("Killed actor for field %q", id)
}
