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
	"time"

	"go.uber.org/zap"

	"github.com/JoshuaAmaju/popform/pkg/pathstore"
)

// Operational state constants
const (
	// OperationalStateIdle is the state when the form is waiting for commands
	OperationalStateIdle = "idle"
	// OperationalStateValidating is the state while a validation round is in flight
	OperationalStateValidating = "validating"
	// OperationalStateSubmitting is the state while the submitter is running
	OperationalStateSubmitting = "submitting"
	// OperationalStateSubmitted is the state after a successful submission
	OperationalStateSubmitted = "submitted"
	// OperationalStateError is the state after a failed submission
	OperationalStateError = "error"
)

// Event constants for state transitions
const (
	// EventSubmit starts a validation round ahead of submission
	EventSubmit = "submit"
	// EventSubmitDirect skips validation when no actors are live
	EventSubmitDirect = "submit_direct"
	// EventValidationPassed fires when the barrier completes with no errors
	EventValidationPassed = "validation_passed"
	// EventValidationFailed fires when the barrier completes with errors
	EventValidationFailed = "validation_failed"
	// EventSubmitSucceeded fires when the submitter resolves
	EventSubmitSucceeded = "submit_succeeded"
	// EventSubmitFailed fires when the submitter fails
	EventSubmitFailed = "submit_failed"
	// EventCancel aborts validation or submission
	EventCancel = "cancel"
	// EventReset restores the form to its initial configuration
	EventReset = "reset"
)

// IsOperationalState returns whether the given state is a supervisor state
func IsOperationalState(state string) bool {
	switch state {
	case OperationalStateIdle,
		OperationalStateValidating,
		OperationalStateSubmitting,
		OperationalStateSubmitted,
		OperationalStateError:
		return true
	}
	return false
}

// ErrNoSubmitter is returned as the submission error when a form without a
// configured submitter reaches the submitting state.
var ErrNoSubmitter = errors.New("no submitter configured")

// Submitter performs the user-supplied submission work with the values
// current at the start of the attempt. It is invoked at most once per
// attempt and may be long-running; it should honor ctx cancellation but the
// supervisor discards stale completions either way.
type Submitter func(ctx context.Context, values *pathstore.Store) (any, error)

// FormContext holds the data stores and submission bookkeeping owned
// exclusively by the Supervisor. It is only ever mutated inside a serialized
// supervisor transition.
type FormContext struct {
	// Values maps field id to current value.
	Values *pathstore.Store
	// Errors maps field id to current validation error; absence means no error.
	Errors *pathstore.Store
	// FieldStates maps field id to the actor's last reported state.
	FieldStates *pathstore.Store

	// Data is the last successful submission result.
	Data any
	// DataUpdatedAt is the time of the last successful submission.
	DataUpdatedAt time.Time

	// Err is the last submission failure; cleared when the error state is left.
	Err error
	// ErrorUpdatedAt is the time of the last submission failure.
	ErrorUpdatedAt time.Time
}

// Config holds parameters for constructing a Supervisor.
type Config struct {
	// ID identifies the form instance in logs and metrics.
	ID string

	// InitialValues seeds the values store and is restored verbatim on reset.
	// Keys are dotted field paths.
	InitialValues map[string]any

	// InitialErrors seeds the errors store and is restored verbatim on reset.
	InitialErrors map[string]any

	// Submitter performs the submission work.
	Submitter Submitter

	// Logger is optional; a component logger derived from ID is used when nil.
	Logger *zap.SugaredLogger

	// ResultBuffer sizes the shared actor result channel. Zero means
	// DefaultResultBuffer.
	ResultBuffer int
}

// DefaultResultBuffer is the default capacity of the shared result channel.
const DefaultResultBuffer = 64
