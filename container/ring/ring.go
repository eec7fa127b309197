/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ring

// Ring is a GC friendly fixed capacity ring.
// items are allocated by one malloc and never resized, once the ring is full
// a Push overwrites the oldest item.
// type V should NOT contain pointer for performance concern.
type Ring[V any] struct {
	items []V
	head  int // index of the oldest item
	n     int
}

// New creates an empty ring holding at most capacity items.
func New[V any](capacity int) *Ring[V] {
	if capacity <= 0 {
		panic("ring: capacity must be > 0")
	}
	return &Ring[V]{items: make([]V, capacity)}
}

// NewFromSlice creates a full ring holding a copy of vv, vv[0] being the oldest.
func NewFromSlice[V any](vv []V) *Ring[V] {
	r := New[V](len(vv))
	r.n = copy(r.items, vv)
	return r
}

// Push appends v as the newest item.
// It returns true if the oldest item was overwritten.
func (r *Ring[V]) Push(v V) bool {
	if r.n < len(r.items) {
		r.items[r.index(r.n)] = v
		r.n++
		return false
	}
	r.items[r.head] = v
	r.head = r.index(1)
	return true
}

// Get returns the ith item, 0 being the oldest.
func (r *Ring[V]) Get(i int) (V, bool) {
	if i < 0 || i >= r.n {
		var zero V
		return zero, false
	}
	return r.items[r.index(i)], true
}

// Do calls function f on each item from the oldest to the newest.
func (r *Ring[V]) Do(f func(v *V)) {
	for i := 0; i < r.n; i++ {
		f(&r.items[r.index(i)])
	}
}

// AppendTo appends the items from the oldest to the newest to dst.
func (r *Ring[V]) AppendTo(dst []V) []V {
	first := r.items[r.head:]
	if len(first) > r.n {
		first = first[:r.n]
	}
	dst = append(dst, first...)
	return append(dst, r.items[:r.n-len(first)]...)
}

// Len returns the number of items in the ring.
func (r *Ring[V]) Len() int {
	return r.n
}

// Cap returns the max number of items.
func (r *Ring[V]) Cap() int {
	return len(r.items)
}

// Reset removes all items.
func (r *Ring[V]) Reset() {
	r.head = 0
	r.n = 0
}

func (r *Ring[V]) index(i int) int {
	i += r.head
	if i >= len(r.items) {
		i -= len(r.items)
	}
	return i
}
