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

	json "github.com/goccy/go-json"
	"github.com/tiendc/go-deepcopy"
)

// Snapshot is a deep copy of the supervisor's observable state so callers can
// inspect or serialize it without racing the run loop.
type Snapshot struct {
	ID    string `json:"id"`
	State string `json:"state"`

	Values      map[string]any    `json:"values"`
	Errors      map[string]string `json:"errors"`
	FieldStates map[string]string `json:"fieldStates"`
	ActorIDs    []string          `json:"actorIds"`

	FailureCount int `json:"failureCount"`

	Data            any       `json:"data,omitempty"`
	DataUpdatedAt   time.Time `json:"dataUpdatedAt"`
	SubmissionError string    `json:"submissionError,omitempty"`
	ErrorUpdatedAt  time.Time `json:"errorUpdatedAt"`
}

// Snapshot captures the current form state.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		ID:             s.id,
		State:          s.machine.GetCurrentFSMState(),
		Values:         s.formCtx.Values.Clone().Flatten(),
		Errors:         make(map[string]string),
		FieldStates:    make(map[string]string),
		ActorIDs:       s.registry.IDs(),
		FailureCount:   s.retry.Failures(),
		DataUpdatedAt:  s.formCtx.DataUpdatedAt,
		ErrorUpdatedAt: s.formCtx.ErrorUpdatedAt,
	}

	for path, value := range s.formCtx.Errors.Flatten() {
		if err := toError(value); err != nil {
			snapshot.Errors[path] = err.Error()
		}
	}

	for path, value := range s.formCtx.FieldStates.Flatten() {
		if state, ok := value.(string); ok {
			snapshot.FieldStates[path] = state
		}
	}

	if s.formCtx.Err != nil {
		snapshot.SubmissionError = s.formCtx.Err.Error()
	}

	if s.formCtx.Data != nil {
		var data any
		if err := deepcopy.Copy(&data, s.formCtx.Data); err != nil {
			// Hand out the shared value rather than dropping it.
			data = s.formCtx.Data
		}
		snapshot.Data = data
	}

	return snapshot
}

// JSON serializes the snapshot.
func (sn Snapshot) JSON() ([]byte, error) {
	return json.Marshal(sn)
}
