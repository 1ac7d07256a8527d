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
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JoshuaAmaju/popform/pkg/field"
)

// ActorRegistry owns the set of live field actors, keyed by id. It guarantees
// at most one actor per id; replacing a live actor requires an explicit kill
// first. The registry is only accessed from serialized supervisor transitions
// and needs no locking of its own.
type ActorRegistry struct {
	actors map[string]*field.Actor
	logger *zap.SugaredLogger
}

// NewActorRegistry creates an empty registry.
func NewActorRegistry(logger *zap.SugaredLogger) *ActorRegistry {
	return &ActorRegistry{
		actors: make(map[string]*field.Actor),
		logger: logger,
	}
}

// Register adds a started actor under its id. It fails if an actor for the id
// is already live; a live actor's internal state must never be silently
// replaced.
func (r *ActorRegistry) Register(actor *field.Actor) error {
	id := actor.ID()
	if _, exists := r.actors[id]; exists {
		return fmt.Errorf("actor already registered for id %q", id)
	}
	r.actors[id] = actor

	return nil
}

// Get returns the live actor for id, if any.
func (r *ActorRegistry) Get(id string) (*field.Actor, bool) {
	actor, ok := r.actors[id]
	return actor, ok
}

// Has reports whether a live actor exists for id.
func (r *ActorRegistry) Has(id string) bool {
	_, ok := r.actors[id]
	return ok
}

// Remove stops the actor for id and deregisters it. Removing an unknown id is
// a no-op reported to the caller.
func (r *ActorRegistry) Remove(id string) bool {
	actor, ok := r.actors[id]
	if !ok {
		r.logger.Debugf("Remove ignored, no live actor for id %q", id)
		return false
	}

	actor.Stop()
	delete(r.actors, id)

	return true
}

// Len returns the number of live actors.
func (r *ActorRegistry) Len() int {
	return len(r.actors)
}

// IDs returns the live actor ids in sorted order.
func (r *ActorRegistry) IDs() []string {
	ids := make([]string, 0, len(r.actors))
	for id := range r.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Each invokes fn for every live actor.
func (r *ActorRegistry) Each(fn func(actor *field.Actor)) {
	for _, actor := range r.actors {
		fn(actor)
	}
}

// StopAll stops every live actor and clears the registry.
func (r *ActorRegistry) StopAll() {
	for id, actor := range r.actors {
		actor.Stop()
		delete(r.actors, id)
	}
}
