package malloc

import (
	"unsafe"

	"github.com/cloudwego/poolheap/unsafex"
)

// Fits is a predicate over the pools of a table, monotone in the pool index:
// if it holds for pool i it holds for every pool after i.
type Fits interface {
	Fits(p *Pool) bool
}

// Tracer receives an event for each heap operation, before it's carried out.
// The event records the request, not its outcome.
type Tracer interface {
	TraceAlloc(size int)
	TraceDealloc(size int)
	TraceGrow(size, newSize int)
	TraceShrink(size, newSize int)
}

// BinarySearch returns the index of the first pool of a for which value fits,
// or a.PoolCount() if there is none.
func BinarySearch[F Fits](a Allocator, value F) int {
	left, right := 0, a.PoolCount()
	for right > left {
		middle := left + (right-left)>>1
		if value.Fits(a.PoolUnchecked(middle)) {
			right = middle
		} else {
			left = middle + 1
		}
	}
	return left
}

// Alloc allocates a block for layout from the smallest pool that fits it,
// falling back to larger pools when it's exhausted.
// A zero-size request returns the empty Block without touching any pool.
func Alloc(a Allocator, layout Layout, init AllocInit) (Block, error) {
	return alloc(a, nil, layout, init)
}

// Dealloc returns the block at ptr to the pool owning it.
// layout must be the one ptr was allocated with; a zero-size layout is a no-op.
//
// ptr must come from an allocation on a and must not be freed twice, which is not checked.
func Dealloc(a Allocator, ptr unsafe.Pointer, layout Layout) {
	dealloc(a, nil, ptr, layout)
}

// Grow moves the block at ptr to a block of at least newSize bytes.
//
// The first layout.Size() bytes are copied, the rest of the new block is initialized by init.
// The old block is freed only after the new one is allocated, on error it's left untouched.
// InPlace is never satisfied and returns ErrUnsupported.
func Grow(a Allocator, ptr unsafe.Pointer, layout Layout, newSize int, placement Placement, init AllocInit) (Block, error) {
	return grow(a, nil, ptr, layout, newSize, placement, init)
}

// Shrink moves the block at ptr to a block of at least newSize bytes, keeping the first newSize bytes.
// Like Grow, InPlace is never satisfied and returns ErrUnsupported.
func Shrink(a Allocator, ptr unsafe.Pointer, layout Layout, newSize int, placement Placement) (Block, error) {
	return shrink(a, nil, ptr, layout, newSize, placement)
}

func alloc(a Allocator, t Tracer, layout Layout, init AllocInit) (Block, error) {
	if t != nil {
		t.TraceAlloc(layout.size)
	}
	if layout.size == 0 {
		return Block{}, nil
	}
	for i, n := BinarySearch(a, layout), a.PoolCount(); i < n; i++ {
		p := a.PoolUnchecked(i)
		if ptr, ok := p.Alloc(); ok {
			b := Block{Ptr: ptr, Size: p.blockSize}
			init.apply(b)
			return b, nil
		}
	}
	return Block{}, ErrExhausted
}

func dealloc(a Allocator, t Tracer, ptr unsafe.Pointer, layout Layout) {
	if t != nil {
		t.TraceDealloc(layout.size)
	}
	if layout.size == 0 {
		return
	}
	a.PoolUnchecked(BinarySearch(a, AddrOf(ptr))).Free(ptr)
}

func grow(a Allocator, t Tracer, ptr unsafe.Pointer, layout Layout, newSize int, placement Placement, init AllocInit) (Block, error) {
	if t != nil {
		t.TraceGrow(layout.size, newSize)
	}
	if placement == InPlace {
		return Block{}, ErrUnsupported
	}
	size := layout.size
	if newSize == size {
		return Block{Ptr: ptr, Size: size}, nil
	}
	if newSize < size {
		return Block{}, ErrBadResize
	}
	b, err := alloc(a, t, layout.withSize(newSize), init)
	if err != nil {
		return Block{}, err
	}
	unsafex.Copy(b.Ptr, ptr, size)
	dealloc(a, t, ptr, layout)
	return b, nil
}

func shrink(a Allocator, t Tracer, ptr unsafe.Pointer, layout Layout, newSize int, placement Placement) (Block, error) {
	if t != nil {
		t.TraceShrink(layout.size, newSize)
	}
	if placement == InPlace {
		return Block{}, ErrUnsupported
	}
	size := layout.size
	if newSize == size {
		return Block{Ptr: ptr, Size: size}, nil
	}
	if newSize > size || newSize < 0 {
		return Block{}, ErrBadResize
	}
	b, err := alloc(a, t, layout.withSize(newSize), Uninitialized)
	if err != nil {
		return Block{}, err
	}
	unsafex.Copy(b.Ptr, ptr, newSize)
	dealloc(a, t, ptr, layout)
	return b, nil
}
