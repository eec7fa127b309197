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

// Package heaptrace emits the operations of a heap as a stream of 32-bit words to a Port.
//
// Each word carries a tag in its top byte and 24 bits of payload, and is XORed with a key
// before it's written:
//
//	alloc:   A1 size>>24, A2 size&0xFFFFFF
//	dealloc: D1 size>>24, D2 size&0xFFFFFF
//	grow:    B1 size>>8, B2 (size&0xFF)<<16 | newSize>>16, B3 newSize&0xFFFF
//	shrink:  C1 size>>8, C2 (size&0xFF)<<16 | newSize>>16, C3 newSize&0xFFFF
//
// Sizes are truncated to 32 bits. Events are only encoded while the port is enabled.
package heaptrace

// DefaultKey is the key words are XORed with unless another one is given.
const DefaultKey uint32 = 0xC5A3_5A3C

const (
	tagAlloc1   = 0xA1
	tagAlloc2   = 0xA2
	tagDealloc1 = 0xD1
	tagDealloc2 = 0xD2
	tagGrow1    = 0xB1
	tagGrow2    = 0xB2
	tagGrow3    = 0xB3
	tagShrink1  = 0xC1
	tagShrink2  = 0xC2
	tagShrink3  = 0xC3

	payloadMask = 0x00FF_FFFF
)

// Port receives trace words.
type Port interface {
	// Enabled reports whether the port accepts words right now.
	Enabled() bool
	// WriteWord writes one word.
	WriteWord(w uint32)
}

// Tracer encodes heap events to a Port.
// It implements malloc.Tracer. A nil *Tracer traces nothing.
type Tracer struct {
	port Port
	key  uint32
}

// New creates a Tracer writing to port, XORing words with key.
func New(port Port, key uint32) *Tracer {
	return &Tracer{port: port, key: key}
}

// TraceAlloc emits an alloc event.
func (t *Tracer) TraceAlloc(size int) {
	if t.enabled() {
		t.two(tagAlloc1, tagAlloc2, uint32(size))
	}
}

// TraceDealloc emits a dealloc event.
func (t *Tracer) TraceDealloc(size int) {
	if t.enabled() {
		t.two(tagDealloc1, tagDealloc2, uint32(size))
	}
}

// TraceGrow emits a grow event.
func (t *Tracer) TraceGrow(size, newSize int) {
	if t.enabled() {
		t.three(tagGrow1, tagGrow2, tagGrow3, uint32(size), uint32(newSize))
	}
}

// TraceShrink emits a shrink event.
func (t *Tracer) TraceShrink(size, newSize int) {
	if t.enabled() {
		t.three(tagShrink1, tagShrink2, tagShrink3, uint32(size), uint32(newSize))
	}
}

func (t *Tracer) enabled() bool {
	return t != nil && t.port != nil && t.port.Enabled()
}

func (t *Tracer) word(tag, payload uint32) {
	t.port.WriteWord((tag<<24 | payload&payloadMask) ^ t.key)
}

func (t *Tracer) two(tag1, tag2, size uint32) {
	t.word(tag1, size>>24)
	t.word(tag2, size)
}

func (t *Tracer) three(tag1, tag2, tag3, size, newSize uint32) {
	t.word(tag1, size>>8)
	t.word(tag2, (size&0xFF)<<16|newSize>>16)
	t.word(tag3, newSize&0xFFFF)
}
