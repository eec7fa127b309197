package malloc

import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/cloudwego/poolheap/unsafex"
)

// AllocInit specifies how the memory of a newly allocated block is initialized.
type AllocInit uint8

const (
	// Uninitialized leaves the contents of the block unspecified.
	Uninitialized AllocInit = iota
	// Zeroed clears the whole block, including the bytes past the requested size.
	Zeroed
)

func (i AllocInit) apply(b Block) {
	if i == Zeroed {
		unsafex.Zero(b.Ptr, b.Size)
	}
}

func (i AllocInit) String() string {
	if i == Zeroed {
		return "zeroed"
	}
	return "uninitialized"
}

// Placement tells Grow and Shrink whether the block is allowed to move.
type Placement uint8

const (
	// MayMove allows the block to be relocated.
	MayMove Placement = iota
	// InPlace requires the address to stay the same. It is never satisfied.
	InPlace
)

func (p Placement) String() string {
	if p == InPlace {
		return "in-place"
	}
	return "may-move"
}

// Layout describes a memory request: the number of bytes and their alignment.
//
// The alignment is carried along with the request but does not take part in pool selection,
// block alignment is decided by the block sizes and the base of the arena.
type Layout struct {
	size  int
	align int
}

// NewLayout returns a Layout for size bytes aligned to align.
// align must be a power of two and size must not be negative.
func NewLayout(size, align int) (Layout, error) {
	if size < 0 {
		return Layout{}, errors.Newf("layout size must be >= 0, got %d", size)
	}
	if align <= 0 || align&(align-1) != 0 {
		return Layout{}, errors.Newf("layout align must be a power of two, got %d", align)
	}
	return Layout{size: size, align: align}, nil
}

// MustNewLayout is like NewLayout but panics on invalid arguments.
func MustNewLayout(size, align int) Layout {
	l, err := NewLayout(size, align)
	if err != nil {
		panic(err)
	}
	return l
}

// Size returns the requested size in bytes.
func (l Layout) Size() int { return l.size }

// Align returns the requested alignment.
func (l Layout) Align() int { return l.align }

func (l Layout) withSize(size int) Layout {
	return Layout{size: size, align: l.align}
}

// Fits reports whether a block of p is large enough for the request.
func (l Layout) Fits(p *Pool) bool {
	return l.size <= p.blockSize
}

// Addr is a raw address inside the address space of a pool table.
type Addr uintptr

// AddrOf returns the address of ptr.
func AddrOf(ptr unsafe.Pointer) Addr {
	return Addr(uintptr(ptr))
}

// Fits reports whether the address is below the end of p.
// Searching a table with it finds the pool owning the address.
func (a Addr) Fits(p *Pool) bool {
	return uintptr(a) < p.end
}

// Block is a piece of memory handed out by the heap.
// Size is the block size of the pool serving the request and may exceed the requested size.
type Block struct {
	Ptr  unsafe.Pointer
	Size int
}

// Bytes returns the whole block as a []byte without copy.
// It returns nil for the empty block of a zero-size request.
func (b Block) Bytes() []byte {
	return unsafex.Bytes(b.Ptr, b.Size)
}

// IsEmpty reports whether b is the result of a zero-size request.
func (b Block) IsEmpty() bool {
	return b.Size == 0
}
