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

package mempool

import (
	"unsafe"

	"github.com/cloudwego/poolheap/unsafex/malloc"
)

// MemPool hands out []byte backed by the blocks of a heap.
//
// The cap of a returned buf is always the block size of the pool serving it,
// which is what Free relies on to return the block.
// Tips for usage:
// * buf returned by Malloc may not be initialized with zeros, use at your own risk.
// * call `Free` when buf is no longer used, DO NOT REUSE buf after calling `Free`.
// * DO NOT reslice buf from the beginning (buf[n:]) before `Free`, it changes the address.
type MemPool struct {
	h *malloc.Locked
}

// New creates a MemPool over h.
func New(h *malloc.Locked) *MemPool {
	return &MemPool{h: h}
}

func layoutOf(n int) malloc.Layout {
	return malloc.MustNewLayout(n, 1)
}

// Malloc returns a buf with len == size from the heap.
// It returns malloc.ErrExhausted if no pool can serve size.
func (p *MemPool) Malloc(size int) ([]byte, error) {
	b, err := p.h.Alloc(layoutOf(size), malloc.Uninitialized)
	if err != nil {
		return nil, err
	}
	return b.Bytes()[:size], nil
}

// Free returns buf to the heap. A buf with cap 0 is ignored.
func (p *MemPool) Free(buf []byte) {
	c := cap(buf)
	if c == 0 {
		return
	}
	p.h.Dealloc(unsafe.Pointer(unsafe.SliceData(buf)), layoutOf(c))
}

// Append appends bytes to the given `[]byte`.
// It moves `a` to a larger block if needed, so call it like `b, err = p.Append(b, data...)`.
// On error `a` is left untouched.
func (p *MemPool) Append(a []byte, b ...byte) ([]byte, error) {
	if cap(a)-len(a) >= len(b) {
		return append(a, b...), nil
	}
	ret, err := p.grow(a, len(a)+len(b))
	if err != nil {
		return a, err
	}
	copy(ret[len(a):], b)
	return ret, nil
}

// AppendStr ... same as Append for string.
func (p *MemPool) AppendStr(a []byte, b string) ([]byte, error) {
	if cap(a)-len(a) >= len(b) {
		return append(a, b...), nil
	}
	ret, err := p.grow(a, len(a)+len(b))
	if err != nil {
		return a, err
	}
	copy(ret[len(a):], b)
	return ret, nil
}

func (p *MemPool) grow(a []byte, size int) ([]byte, error) {
	blk, err := p.h.Grow(unsafe.Pointer(unsafe.SliceData(a)), layoutOf(cap(a)), size, malloc.MayMove, malloc.Uninitialized)
	if err != nil {
		return nil, err
	}
	return blk.Bytes()[:size], nil
}
