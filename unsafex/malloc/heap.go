package malloc

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Options ...
type Options struct {
	// Tracer receives an event for each operation. Optional.
	Tracer Tracer

	// Logger is used when building the heap. slog.Default() if nil.
	Logger *slog.Logger
}

// DefaultOptions returns the default values of Options.
func DefaultOptions() *Options {
	return &Options{Logger: slog.Default()}
}

// Heap is a segregated size-class allocator over a single arena.
//
// Heap is not safe for concurrent use, wrap it with Locked if needed.
type Heap struct {
	// mem keeps the arena reachable as long as the heap is.
	mem    []byte
	table  *Table
	tracer Tracer
}

var _ Allocator = (*Heap)(nil)

// NewHeap creates a heap serving the given size classes from mem.
// See NewTable for the requirements on classes.
func NewHeap(mem []byte, classes []Class, o *Options) (*Heap, error) {
	if o == nil {
		o = DefaultOptions()
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t, err := NewTable(mem, classes)
	if err != nil {
		return nil, errors.Wrap(err, "new heap")
	}
	for i := range t.pools {
		p := &t.pools[i]
		logger.Debug("heap pool",
			slog.Int("index", i),
			slog.Int("block_size", p.blockSize),
			slog.Int("capacity", p.capacity),
			slog.Uint64("base", uint64(p.start)))
	}
	logger.Info("heap ready",
		slog.Int("pools", t.PoolCount()),
		slog.Int("arena_bytes", len(mem)),
		slog.Int("used_bytes", ArenaSize(classes)),
		slog.Bool("trace", o.Tracer != nil))
	return &Heap{mem: mem, table: t, tracer: o.Tracer}, nil
}

// PoolCount implements Allocator.
func (h *Heap) PoolCount() int {
	return h.table.PoolCount()
}

// PoolUnchecked implements Allocator.
func (h *Heap) PoolUnchecked(i int) *Pool {
	return h.table.PoolUnchecked(i)
}

// Table returns the pool table of the heap.
func (h *Heap) Table() *Table {
	return h.table
}

// Alloc is like the package func Alloc, with tracing.
func (h *Heap) Alloc(layout Layout, init AllocInit) (Block, error) {
	return alloc(h.table, h.tracer, layout, init)
}

// Dealloc is like the package func Dealloc, with tracing.
func (h *Heap) Dealloc(ptr unsafe.Pointer, layout Layout) {
	dealloc(h.table, h.tracer, ptr, layout)
}

// Grow is like the package func Grow, with tracing.
// The allocation and the free it's made of are traced too.
func (h *Heap) Grow(ptr unsafe.Pointer, layout Layout, newSize int, placement Placement, init AllocInit) (Block, error) {
	return grow(h.table, h.tracer, ptr, layout, newSize, placement, init)
}

// Shrink is like the package func Shrink, with tracing.
func (h *Heap) Shrink(ptr unsafe.Pointer, layout Layout, newSize int, placement Placement) (Block, error) {
	return shrink(h.table, h.tracer, ptr, layout, newSize, placement)
}

// Stats returns the occupancy of each pool.
func (h *Heap) Stats() []PoolStats {
	return h.table.Stats()
}

// Reset forgets every allocation. Blocks handed out before must not be used afterwards.
func (h *Heap) Reset() {
	h.table.Reset()
}
