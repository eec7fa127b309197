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

// Package arena provides the memory regions pool tables are carved from.
package arena

import (
	"github.com/bytedance/gopkg/lang/dirtmake"
	"github.com/cockroachdb/errors"
)

// Arena is a contiguous region of memory.
type Arena struct {
	buf    []byte
	mapped bool
}

// New returns an arena of size bytes allocated on the Go heap.
// Its contents are not zeroed.
func New(size int) (*Arena, error) {
	if size <= 0 {
		return nil, errors.Newf("arena size must be > 0, got %d", size)
	}
	return &Arena{buf: dirtmake.Bytes(size, size)}, nil
}

// Map returns an arena of size bytes of anonymous private memory mapped outside the Go heap.
// It must be released with Close.
func Map(size int) (*Arena, error) {
	if size <= 0 {
		return nil, errors.Newf("arena size must be > 0, got %d", size)
	}
	b, err := mmap(size)
	if err != nil {
		return nil, errors.Wrapf(err, "map arena of %d bytes", size)
	}
	return &Arena{buf: b, mapped: true}, nil
}

// Bytes returns the memory of the arena.
func (a *Arena) Bytes() []byte {
	return a.buf
}

// Len returns the size of the arena.
func (a *Arena) Len() int {
	return len(a.buf)
}

// Mapped reports whether the arena was created by Map.
func (a *Arena) Mapped() bool {
	return a.mapped
}

// Close unmaps a mapped arena. The memory must not be used afterwards.
// It's a no-op for arenas created by New, and for arenas already closed.
func (a *Arena) Close() error {
	if a.buf == nil {
		return nil
	}
	b := a.buf
	a.buf = nil
	if !a.mapped {
		return nil
	}
	return errors.Wrap(munmap(b), "unmap arena")
}
