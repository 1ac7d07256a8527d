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

// validationBarrier records which actor ids have reported during the current
// validation round. It is scoped to one round: the supervisor clears it both
// on entering and on leaving the validating state so markers never leak into
// the next round.
//
// The barrier only counts distinct reporting ids; it is independent of the
// order in which actors report.
type validationBarrier struct {
	reported map[string]struct{}
}

func newValidationBarrier() *validationBarrier {
	return &validationBarrier{reported: make(map[string]struct{})}
}

// mark records that the actor with the given id has reported.
func (b *validationBarrier) mark(id string) {
	b.reported[id] = struct{}{}
}

// has reports whether the given id has already reported this round.
func (b *validationBarrier) has(id string) bool {
	_, ok := b.reported[id]
	return ok
}

// size returns the number of distinct ids that have reported.
func (b *validationBarrier) size() int {
	return len(b.reported)
}

// satisfied reports whether every one of total actors has reported.
func (b *validationBarrier) satisfied(total int) bool {
	return len(b.reported) >= total
}

// clear empties the marker set for the next round.
func (b *validationBarrier) clear() {
	b.reported = make(map[string]struct{})
}
