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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnabledRing(n int) *RingPort {
	p := NewRingPort(n)
	p.SetEnabled(true)
	return p
}

func TestTracerWords(t *testing.T) {
	p := newEnabledRing(16)
	tr := New(p, 0)

	tr.TraceAlloc(0x01234567)
	tr.TraceDealloc(0x10)
	tr.TraceGrow(0x01234567, 0x89ABCDEF)
	tr.TraceShrink(0x20, 0x8)
	assert.Equal(t, []uint32{
		0xA1000001, 0xA2234567,
		0xD1000000, 0xD2000010,
		0xB1012345, 0xB26789AB, 0xB300CDEF,
		0xC1000000, 0xC2200000, 0xC3000008,
	}, p.Words())
}

func TestTracerKey(t *testing.T) {
	plain, keyed := newEnabledRing(4), newEnabledRing(4)
	New(plain, 0).TraceAlloc(100)
	New(keyed, DefaultKey).TraceAlloc(100)
	pw, kw := plain.Words(), keyed.Words()
	require.Len(t, kw, 2)
	for i := range pw {
		assert.Equal(t, pw[i]^DefaultKey, kw[i])
	}
}

func TestTracerDisabled(t *testing.T) {
	p := NewRingPort(8)
	tr := New(p, DefaultKey)
	tr.TraceAlloc(1)
	tr.TraceGrow(1, 2)
	assert.Empty(t, p.Words())

	p.SetEnabled(true)
	tr.TraceAlloc(1)
	p.SetEnabled(false)
	tr.TraceDealloc(1)
	assert.Len(t, p.Words(), 2)

	// nil tracer and nil port are no-ops
	var nilTracer *Tracer
	nilTracer.TraceAlloc(1)
	nilTracer.TraceShrink(2, 1)
	New(nil, 0).TraceDealloc(1)
}

func TestDecodeRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 0xFF, 0x100, 0xFFFF, 0x10000, 0xFFFFFF, 0x1000000, 0x12345678, 0x7FFFFFFF}
	p := newEnabledRing(1024)
	tr := New(p, DefaultKey)
	var want []Event
	for _, s := range sizes {
		tr.TraceAlloc(s)
		tr.TraceDealloc(s)
		want = append(want, Event{Op: OpAlloc, Size: uint32(s)}, Event{Op: OpDealloc, Size: uint32(s)})
		for _, n := range sizes {
			tr.TraceGrow(s, n)
			tr.TraceShrink(n, s)
			want = append(want,
				Event{Op: OpGrow, Size: uint32(s), NewSize: uint32(n)},
				Event{Op: OpShrink, Size: uint32(n), NewSize: uint32(s)})
		}
	}
	got, err := Decode(p.Words(), DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeWrapped(t *testing.T) {
	p := newEnabledRing(4)
	tr := New(p, DefaultKey)
	tr.TraceAlloc(1)
	tr.TraceGrow(2, 3)
	tr.TraceDealloc(4)
	// the ring holds the last two words of grow and the dealloc
	got, err := Decode(p.Words(), DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, []Event{{Op: OpDealloc, Size: 4}}, got)

	p.Reset()
	got, err = Decode(p.Words(), DefaultKey)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeErrors(t *testing.T) {
	// truncated
	_, err := Decode([]uint32{0xB1000001, 0xB2000000}, 0)
	assert.True(t, errors.Is(err, ErrTruncated))

	// wrong continuation tag
	events, err := Decode([]uint32{0xA1000000, 0xA2000001, 0xA1000000, 0xD2000001}, 0)
	assert.True(t, errors.Is(err, ErrBadTag))
	assert.Equal(t, []Event{{Op: OpAlloc, Size: 1}}, events)

	// unknown head after a valid event
	_, err = Decode([]uint32{0xD1000000, 0xD2000001, 0x12345678}, 0)
	assert.True(t, errors.Is(err, ErrBadTag))
}

func TestWriterPort(t *testing.T) {
	var buf bytes.Buffer
	p := NewWriterPort(&buf, 8) // 2 words per write
	tr := New(p, DefaultKey)

	tr.TraceAlloc(64)
	assert.Equal(t, 0, buf.Len(), "disabled by default")

	p.SetEnabled(true)
	tr.TraceAlloc(64)
	tr.TraceGrow(64, 128)
	tr.TraceShrink(128, 16)
	tr.TraceDealloc(16)
	require.NoError(t, p.Flush())
	assert.Equal(t, 10*4, buf.Len())
	assert.Equal(t, (uint32(0xA1)<<24)^DefaultKey, binary.LittleEndian.Uint32(buf.Bytes()))

	d := NewDecoder(bytes.NewReader(buf.Bytes()), DefaultKey)
	var got []string
	for {
		e, err := d.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, e.String())
	}
	assert.Equal(t, []string{"alloc(64)", "grow(64 -> 128)", "shrink(128 -> 16)", "dealloc(16)"}, got)

	require.NoError(t, p.Close())
	p.SetEnabled(true)
	assert.False(t, p.Enabled())
	tr.TraceAlloc(1)
	assert.Equal(t, 10*4, buf.Len())
}

func TestDecoderTruncated(t *testing.T) {
	var buf bytes.Buffer
	p := NewWriterPort(&buf, 0)
	p.SetEnabled(true)
	New(p, 0).TraceGrow(1, 2)
	require.NoError(t, p.Close())

	_, err := NewDecoder(bytes.NewReader(buf.Bytes()[:10]), 0).Next()
	assert.True(t, errors.Is(err, ErrTruncated))
	_, err = NewDecoder(bytes.NewReader(buf.Bytes()[:2]), 0).Next()
	assert.True(t, errors.Is(err, ErrTruncated))
	_, err = NewDecoder(bytes.NewReader(nil), 0).Next()
	assert.Equal(t, io.EOF, err)
}

type failWriter struct{ n int }

func (w *failWriter) Write(b []byte) (int, error) {
	w.n++
	return 0, errors.New("port gone")
}

func TestWriterPortError(t *testing.T) {
	w := &failWriter{}
	p := NewWriterPort(w, 4)
	p.SetEnabled(true)
	tr := New(p, 0)
	tr.TraceAlloc(1) // the first word fills the buffer and fails
	assert.EqualError(t, p.Err(), "port gone")
	assert.False(t, p.Enabled())
	p.SetEnabled(true)
	assert.False(t, p.Enabled())
	tr.TraceAlloc(1)
	assert.Equal(t, 1, w.n)
	assert.EqualError(t, p.Close(), "port gone")
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "alloc", OpAlloc.String())
	assert.Equal(t, "shrink", OpShrink.String())
	assert.Equal(t, "Op(9)", Op(9).String())
}
