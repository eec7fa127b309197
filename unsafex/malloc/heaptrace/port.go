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

package heaptrace

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/cloudwego/poolheap/container/ring"
)

const defaultWriterPortBufferSize = 4 << 10

// WriterPort writes trace words to an io.Writer in little endian.
//
// Words are staged in a buffer and written when it's full or on Flush.
// The port is disabled when created, and disables itself on the first write error.
type WriterPort struct {
	enabled atomic.Bool

	mu  sync.Mutex
	w   io.Writer
	buf []byte
	err error
}

// NewWriterPort creates a WriterPort staging up to bufSize bytes.
// A bufSize less than 4 uses the default size.
func NewWriterPort(w io.Writer, bufSize int) *WriterPort {
	if bufSize < 4 {
		bufSize = defaultWriterPortBufferSize
	}
	return &WriterPort{w: w, buf: mcache.Malloc(0, bufSize)}
}

// Enabled implements Port.
func (p *WriterPort) Enabled() bool {
	return p.enabled.Load()
}

// SetEnabled turns the port on or off.
// Turning it on after a write error has no effect.
func (p *WriterPort) SetEnabled(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled.Store(on && p.err == nil && p.buf != nil)
}

// WriteWord implements Port.
func (p *WriterPort) WriteWord(v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil || p.buf == nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
	if cap(p.buf)-len(p.buf) < 4 {
		p.flushLocked()
	}
}

// Flush writes the staged words.
func (p *WriterPort) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushLocked()
	return p.err
}

func (p *WriterPort) flushLocked() {
	if p.err != nil || len(p.buf) == 0 {
		return
	}
	if _, err := p.w.Write(p.buf); err != nil {
		p.err = err
		p.enabled.Store(false)
	}
	p.buf = p.buf[:0]
}

// Err returns the first write error.
func (p *WriterPort) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close flushes the staged words and disables the port for good.
func (p *WriterPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled.Store(false)
	if p.buf == nil {
		return p.err
	}
	p.flushLocked()
	mcache.Free(p.buf)
	p.buf = nil
	return p.err
}

// RingPort keeps the last words written in memory.
// The port is disabled when created.
type RingPort struct {
	enabled atomic.Bool

	mu sync.Mutex
	r  *ring.Ring[uint32]
}

// NewRingPort creates a RingPort keeping the last n words.
func NewRingPort(n int) *RingPort {
	return &RingPort{r: ring.New[uint32](n)}
}

// Enabled implements Port.
func (p *RingPort) Enabled() bool {
	return p.enabled.Load()
}

// SetEnabled turns the port on or off.
func (p *RingPort) SetEnabled(on bool) {
	p.enabled.Store(on)
}

// WriteWord implements Port.
func (p *RingPort) WriteWord(v uint32) {
	p.mu.Lock()
	p.r.Push(v)
	p.mu.Unlock()
}

// Words returns the words kept, the oldest first.
// When the ring has wrapped the first words may be the tail of an event, see Decode.
func (p *RingPort) Words() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.AppendTo(make([]uint32, 0, p.r.Len()))
}

// Reset drops all words.
func (p *RingPort) Reset() {
	p.mu.Lock()
	p.r.Reset()
	p.mu.Unlock()
}
