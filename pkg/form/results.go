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
	"github.com/JoshuaAmaju/popform/pkg/field"
	"github.com/JoshuaAmaju/popform/pkg/metrics"
)

// handleActorResult applies one field actor report to the form context and,
// during a validation round, to the barrier. Reports are suppressed entirely
// while submitting.
func (s *Supervisor) handleActorResult(res field.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := res.ActorID()
	state := s.machine.GetCurrentFSMState()

	if state == OperationalStateSubmitting {
		s.logger.Debugf("Actor result from %q suppressed while submitting", id)
		return
	}
	if !s.registry.Has(id) {
		// A kill can race with an in-flight report; the report loses.
		s.logger.Debugf("Actor result from unregistered id %q discarded", id)
		return
	}

	switch r := res.(type) {
	case field.IdleResult:
		s.formCtx.FieldStates.Set(id, field.StateIdle)

	case field.ValidatingResult:
		s.formCtx.FieldStates.Set(id, field.StateValidating)

	case field.SuccessResult:
		if r.HasValue {
			s.formCtx.Values.Set(id, r.Value)
		}
		s.formCtx.FieldStates.Set(id, field.StateSuccess)
		if state == OperationalStateValidating {
			s.formCtx.Errors.Delete(id)
			s.markAndDecide(id)
		}

	case field.ErrorResult:
		s.formCtx.Errors.Set(id, r.Err)
		s.formCtx.FieldStates.Set(id, field.StateError)
		if state == OperationalStateValidating {
			s.markAndDecide(id)
		}

	default:
		s.logger.Warnf("Unknown actor result %T from id %q", res, id)
	}
}

// markAndDecide records a report on the barrier and, once every live actor
// has reported, decides the round: any accumulated field error aborts back to
// idle, otherwise the form proceeds to submitting. The decision only counts
// distinct reporting ids and is independent of report order.
func (s *Supervisor) markAndDecide(id string) {
	s.barrier.mark(id)

	if !s.barrier.satisfied(s.registry.Len()) {
		return
	}

	if !s.formCtx.Errors.IsEmpty() {
		s.logger.Debugf("Validation round failed for form %s with %d errors", s.id, s.formCtx.Errors.Len())
		metrics.IncValidationRound(s.id, "failed")
		s.fire(EventValidationFailed)
		return
	}

	s.logger.Debugf("Validation round passed for form %s", s.id)
	metrics.IncValidationRound(s.id, "passed")
	s.fire(EventValidationPassed)
}
