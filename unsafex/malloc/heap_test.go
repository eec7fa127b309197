package malloc

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type recordTracer struct {
	events []string
}

func (r *recordTracer) TraceAlloc(size int) {
	r.events = append(r.events, fmt.Sprintf("alloc %d", size))
}

func (r *recordTracer) TraceDealloc(size int) {
	r.events = append(r.events, fmt.Sprintf("dealloc %d", size))
}

func (r *recordTracer) TraceGrow(size, newSize int) {
	r.events = append(r.events, fmt.Sprintf("grow %d %d", size, newSize))
}

func (r *recordTracer) TraceShrink(size, newSize int) {
	r.events = append(r.events, fmt.Sprintf("shrink %d %d", size, newSize))
}

var heapClasses = []Class{{8, 8}, {16, 8}, {32, 8}, {64, 4}}

func newTestHeapWithTracer(t *testing.T, tr Tracer) *Heap {
	t.Helper()
	h, err := NewHeap(make([]byte, ArenaSize(heapClasses)), heapClasses, &Options{Tracer: tr})
	require.NoError(t, err)
	return h
}

func TestNewHeap(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h, err := NewHeap(make([]byte, 1024), heapClasses, &Options{Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, len(heapClasses), h.PoolCount())
	assert.Equal(t, h.Table().PoolUnchecked(2), h.PoolUnchecked(2))

	out := buf.String()
	assert.Contains(t, out, "heap ready")
	assert.Contains(t, out, "pools=4")
	assert.Contains(t, out, "block_size=64")

	_, err = NewHeap(make([]byte, 100), heapClasses, nil)
	assert.ErrorContains(t, err, "new heap")
	_, err = NewHeap(make([]byte, 1024), []Class{{16, 1}, {8, 1}}, nil)
	assert.ErrorContains(t, err, "must be greater")
	_, err = NewHeap(nil, nil, DefaultOptions())
	assert.Error(t, err)
}

func TestHeapTrace(t *testing.T) {
	rec := &recordTracer{}
	h := newTestHeapWithTracer(t, rec)

	l := MustNewLayout(10, 1)
	b, err := h.Alloc(l, Uninitialized)
	require.NoError(t, err)
	b, err = h.Grow(b.Ptr, l, 40, MayMove, Zeroed)
	require.NoError(t, err)
	l = MustNewLayout(40, 1)
	_, err = h.Grow(b.Ptr, l, 50, InPlace, Zeroed)
	require.ErrorIs(t, err, ErrUnsupported)
	b, err = h.Shrink(b.Ptr, l, 3, MayMove)
	require.NoError(t, err)
	h.Dealloc(b.Ptr, MustNewLayout(3, 1))
	h.Dealloc(nil, MustNewLayout(0, 1))

	assert.Equal(t, []string{
		"alloc 10",
		"grow 10 40", "alloc 40", "dealloc 10",
		"grow 40 50",
		"shrink 40 3", "alloc 3", "dealloc 40",
		"dealloc 3",
		"dealloc 0",
	}, rec.events)
}

func TestHeapWithoutTracer(t *testing.T) {
	h := newTestHeapWithTracer(t, nil)
	l := MustNewLayout(64, 8)
	var blocks []Block
	for {
		b, err := h.Alloc(l, Zeroed)
		if err != nil {
			assert.ErrorIs(t, err, ErrExhausted)
			break
		}
		blocks = append(blocks, b)
	}
	assert.Len(t, blocks, 4)
	for _, b := range blocks {
		h.Dealloc(b.Ptr, l)
	}
	assert.Equal(t, 0, h.Stats()[3].InUse)
	assert.Equal(t, 4, h.Stats()[3].Free)
}

func TestHeapReset(t *testing.T) {
	h := newTestHeapWithTracer(t, nil)
	for i := 1; i <= 64; i *= 2 {
		_, err := h.Alloc(MustNewLayout(i, 1), Uninitialized)
		require.NoError(t, err)
	}
	h.Reset()
	for i, s := range h.Stats() {
		assert.Equal(t, PoolStats{BlockSize: heapClasses[i].BlockSize, Capacity: heapClasses[i].Capacity}, s)
	}
}
