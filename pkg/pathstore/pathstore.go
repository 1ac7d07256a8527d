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

// Package pathstore implements a tree of nested maps addressed by
// dot-delimited string paths. The form supervisor reuses it unchanged for its
// values, errors and field state stores.
package pathstore

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tiendc/go-deepcopy"
)

// Store is a mutable tree of nested maps. Intermediate maps are created as
// needed on Set; Get and Delete of an absent path are no-ops.
//
// A Store is not safe for concurrent use; the supervisor only mutates its
// stores inside a serialized transition.
type Store struct {
	root map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{root: make(map[string]any)}
}

// FromMap creates a store seeded with a deep copy of the given mapping.
// Keys are treated as dotted paths.
func FromMap(seed map[string]any) *Store {
	s := New()
	for path, value := range seed {
		// The source must be the seed value itself, not the address of the
		// loop variable; copying through a *any stores a pointer-wrapped
		// value instead of a copy.
		var copied any
		if err := deepcopy.Copy(&copied, value); err != nil {
			// Fall back to the original value for uncopyable types
			// (channels, funcs); the caller keeps ownership then.
			copied = value
		}
		s.Set(path, copied)
	}

	return s
}

// Get returns the value at path. The second return value reports whether the
// path was present.
func (s *Store) Get(path string) (any, bool) {
	segments := strings.Split(path, ".")
	node := s.root
	for i, segment := range segments {
		value, ok := node[segment]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		child, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		node = child
	}

	return nil, false
}

// Has reports whether the path is present.
func (s *Store) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Set stores value at path, creating intermediate maps as needed.
// A non-map value sitting on an intermediate segment is replaced.
func (s *Store) Set(path string, value any) {
	segments := strings.Split(path, ".")
	node := s.root
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// Delete removes the value at path. Absent paths are a no-op. Intermediate
// maps left empty by the removal are pruned.
func (s *Store) Delete(path string) {
	deleteFrom(s.root, strings.Split(path, "."))
}

func deleteFrom(node map[string]any, segments []string) {
	if len(segments) == 1 {
		delete(node, segments[0])
		return
	}

	child, ok := node[segments[0]].(map[string]any)
	if !ok {
		return
	}
	deleteFrom(child, segments[1:])
	if len(child) == 0 {
		delete(node, segments[0])
	}
}

// Len returns the number of leaf entries in the store.
func (s *Store) Len() int {
	return countLeaves(s.root)
}

// IsEmpty reports whether the store has no leaf entries.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

func countLeaves(node map[string]any) int {
	count := 0
	for _, value := range node {
		if child, ok := value.(map[string]any); ok {
			count += countLeaves(child)
			continue
		}
		count++
	}

	return count
}

// Flatten returns a mapping from dotted leaf paths to their values.
func (s *Store) Flatten() map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", s.root)

	return out
}

func flattenInto(out map[string]any, prefix string, node map[string]any) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := value.(map[string]any); ok {
			flattenInto(out, path, child)
			continue
		}
		out[path] = value
	}
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	clone := New()
	if err := deepcopy.Copy(&clone.root, &s.root); err != nil {
		// Shallow-copy leaves that resist deep copying rather than losing them.
		for path, value := range s.Flatten() {
			clone.Set(path, value)
		}
	}

	return clone
}

// AsMap returns a deep copy of the underlying tree.
func (s *Store) AsMap() map[string]any {
	return s.Clone().root
}

// MarshalJSON implements the json.Marshaler interface.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.root)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Store) UnmarshalJSON(data []byte) error {
	root := make(map[string]any)
	if err := json.Unmarshal(data, &root); err != nil {
		return err
	}
	s.root = root

	return nil
}
