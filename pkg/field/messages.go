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

	"github.com/JoshuaAmaju/popform/pkg/pathstore"
)

// Validator produces the validation outcome for a single field value.
// A nil return means the value is valid. The full values tree is passed so
// cross-field rules (e.g. password confirmation) can be expressed.
type Validator func(ctx context.Context, value any, values *pathstore.Store) error

// Message is a command sent from the supervisor to a field actor.
// Messages to a single actor are delivered and processed in send order.
type Message interface {
	isMessage()
}

// ValidateMessage asks the actor to validate. When HasValue is set the carried
// value replaces the actor's current value for this validation; otherwise the
// actor validates what it currently holds.
type ValidateMessage struct {
	Value    any
	HasValue bool
	Values   *pathstore.Store
}

func (ValidateMessage) isMessage() {}

// ChangeMessage replaces the actor's current value and clears its error.
type ChangeMessage struct {
	Value any
}

func (ChangeMessage) isMessage() {}

// ResetMessage restores the actor's initial value and error.
type ResetMessage struct{}

func (ResetMessage) isMessage() {}

// Result is a report emitted by a field actor toward the supervisor.
type Result interface {
	ActorID() string
	isResult()
}

// IdleResult reports that the actor returned to its idle state.
type IdleResult struct {
	ID string
}

func (r IdleResult) ActorID() string { return r.ID }
func (IdleResult) isResult()         {}

// ValidatingResult reports that the actor started validating.
type ValidatingResult struct {
	ID string
}

func (r ValidatingResult) ActorID() string { return r.ID }
func (ValidatingResult) isResult()         {}

// SuccessResult reports a successful validation. HasValue indicates whether
// Value carries the validated value; without it the supervisor keeps the
// value it already holds for the field.
type SuccessResult struct {
	ID       string
	Value    any
	HasValue bool
}

func (r SuccessResult) ActorID() string { return r.ID }
func (SuccessResult) isResult()         {}

// ErrorResult reports a failed validation.
type ErrorResult struct {
	ID  string
	Err error
}

func (r ErrorResult) ActorID() string { return r.ID }
func (ErrorResult) isResult()         {}
