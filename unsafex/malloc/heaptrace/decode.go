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
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
)

var (
	// ErrBadTag is returned when a word doesn't carry the tag expected at its position.
	ErrBadTag = errors.New("heaptrace: unexpected tag")

	// ErrTruncated is returned when the stream ends in the middle of an event.
	ErrTruncated = errors.New("heaptrace: truncated event")
)

// Op is the kind of a heap operation.
type Op uint8

const (
	OpAlloc Op = iota + 1
	OpDealloc
	OpGrow
	OpShrink
)

func (op Op) String() string {
	switch op {
	case OpAlloc:
		return "alloc"
	case OpDealloc:
		return "dealloc"
	case OpGrow:
		return "grow"
	case OpShrink:
		return "shrink"
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Event is a decoded heap operation. NewSize is only set for OpGrow and OpShrink.
type Event struct {
	Op      Op
	Size    uint32
	NewSize uint32
}

func (e Event) String() string {
	if e.Op == OpGrow || e.Op == OpShrink {
		return fmt.Sprintf("%s(%d -> %d)", e.Op, e.Size, e.NewSize)
	}
	return fmt.Sprintf("%s(%d)", e.Op, e.Size)
}

// Decoder reads events from a stream written by WriterPort.
type Decoder struct {
	r   io.Reader
	key uint32
	buf [4]byte
}

// NewDecoder creates a Decoder reading from r. key must be the one of the Tracer.
func NewDecoder(r io.Reader, key uint32) *Decoder {
	return &Decoder{r: r, key: key}
}

// Next returns the next event, or io.EOF at the end of the stream.
func (d *Decoder) Next() (Event, error) {
	return decodeEvent(d.key, d.readWord)
}

func (d *Decoder) readWord() (uint32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, ErrTruncated
		}
		return 0, err
	}
	return uint32(d.buf[0]) | uint32(d.buf[1])<<8 | uint32(d.buf[2])<<16 | uint32(d.buf[3])<<24, nil
}

// Decode decodes the words kept by a RingPort.
// Words at the beginning that continue an event whose head was overwritten are skipped.
func Decode(words []uint32, key uint32) ([]Event, error) {
	for len(words) > 0 && !isHeadTag((words[0]^key)>>24) {
		words = words[1:]
	}
	next := func() (uint32, error) {
		if len(words) == 0 {
			return 0, io.EOF
		}
		w := words[0]
		words = words[1:]
		return w, nil
	}
	var events []Event
	for {
		e, err := decodeEvent(key, next)
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}

func isHeadTag(tag uint32) bool {
	switch tag {
	case tagAlloc1, tagDealloc1, tagGrow1, tagShrink1:
		return true
	}
	return false
}

func decodeEvent(key uint32, next func() (uint32, error)) (Event, error) {
	w, err := next()
	if err != nil {
		return Event{}, err
	}
	w ^= key
	tag, payload := w>>24, w&payloadMask
	switch tag {
	case tagAlloc1, tagDealloc1:
		lo, err := nextPayload(key, next, tag+1)
		if err != nil {
			return Event{}, err
		}
		op := OpAlloc
		if tag == tagDealloc1 {
			op = OpDealloc
		}
		return Event{Op: op, Size: payload<<24 | lo}, nil
	case tagGrow1, tagShrink1:
		mid, err := nextPayload(key, next, tag+1)
		if err != nil {
			return Event{}, err
		}
		lo, err := nextPayload(key, next, tag+2)
		if err != nil {
			return Event{}, err
		}
		op := OpGrow
		if tag == tagShrink1 {
			op = OpShrink
		}
		return Event{
			Op:      op,
			Size:    payload<<8 | mid>>16,
			NewSize: (mid&0xFFFF)<<16 | lo,
		}, nil
	}
	return Event{}, errors.Wrapf(ErrBadTag, "tag %#x at the head of an event", tag)
}

func nextPayload(key uint32, next func() (uint32, error), want uint32) (uint32, error) {
	w, err := next()
	if err == io.EOF {
		return 0, ErrTruncated
	}
	if err != nil {
		return 0, err
	}
	w ^= key
	if tag := w >> 24; tag != want {
		return 0, errors.Wrapf(ErrBadTag, "tag %#x, want %#x", tag, want)
	}
	return w & payloadMask, nil
}
