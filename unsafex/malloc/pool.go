package malloc

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/cloudwego/poolheap/unsafex"
)

// MinBlockSize is the smallest block size a pool accepts.
// A free block stores the link to the next free block in its first word.
const MinBlockSize = unsafex.WordSize

// Pool is a region of memory cut into blocks of one fixed size.
//
// Blocks are handed out from the free list first, then by bumping the cursor over
// never used memory. Freed blocks are pushed to the free list: the first word of a
// free block holds the address of the next free block, 0 ends the list.
// A block is either virgin (at or past the cursor), allocated, or on the free list.
//
// Pool is not safe for concurrent use.
type Pool struct {
	base  unsafe.Pointer
	start uintptr
	end   uintptr

	blockSize int
	capacity  int

	// cursor is the number of blocks ever bump allocated.
	cursor int
	// freeHead is the address of the last freed block, 0 if the free list is empty.
	freeHead uintptr
}

// NewPool creates a pool of capacity blocks of blockSize bytes at the beginning of region.
func NewPool(region []byte, blockSize, capacity int) (*Pool, error) {
	if err := checkClass(blockSize, capacity); err != nil {
		return nil, err
	}
	if need := blockSize * capacity; len(region) < need {
		return nil, errors.Newf("region too small: need %d bytes, got %d", need, len(region))
	}
	p := makePool(unsafe.Pointer(unsafe.SliceData(region)), blockSize, capacity)
	return &p, nil
}

func checkClass(blockSize, capacity int) error {
	if blockSize < MinBlockSize {
		return errors.Newf("block size must be >= %d, got %d", MinBlockSize, blockSize)
	}
	if capacity <= 0 {
		return errors.Newf("capacity must be > 0, got %d", capacity)
	}
	if capacity > math.MaxInt/blockSize {
		return errors.Newf("pool of %d blocks of %d bytes overflows", capacity, blockSize)
	}
	return nil
}

// makePool doesn't validate anything, callers own the checks.
func makePool(base unsafe.Pointer, blockSize, capacity int) Pool {
	start := uintptr(base)
	return Pool{
		base:      base,
		start:     start,
		end:       start + uintptr(blockSize*capacity),
		blockSize: blockSize,
		capacity:  capacity,
	}
}

// Alloc returns a block of the pool, or false if the pool is exhausted.
// The most recently freed block is reused first.
func (p *Pool) Alloc() (unsafe.Pointer, bool) {
	if p.freeHead != 0 {
		ptr := p.at(p.freeHead)
		p.freeHead = unsafex.LoadWord(ptr)
		return ptr, true
	}
	if p.cursor < p.capacity {
		ptr := unsafe.Add(p.base, p.cursor*p.blockSize)
		p.cursor++
		return ptr, true
	}
	return nil, false
}

// Free returns the block at ptr to the pool.
//
// ptr must be a block allocated from this pool and not freed since,
// which is not checked.
func (p *Pool) Free(ptr unsafe.Pointer) {
	unsafex.StoreWord(ptr, p.freeHead)
	p.freeHead = uintptr(ptr)
}

// at converts an address of this pool back to a pointer derived from base.
func (p *Pool) at(addr uintptr) unsafe.Pointer {
	return unsafe.Add(p.base, int(addr-p.start))
}

// Size returns the block size.
func (p *Pool) Size() int { return p.blockSize }

// Capacity returns the max number of blocks.
func (p *Pool) Capacity() int { return p.capacity }

// Cursor returns the number of blocks ever bump allocated.
func (p *Pool) Cursor() int { return p.cursor }

// Base returns the first address of the pool.
func (p *Pool) Base() Addr { return Addr(p.start) }

// End returns the address right after the last block.
func (p *Pool) End() Addr { return Addr(p.end) }

// Contains reports whether a falls into the pool's region.
func (p *Pool) Contains(a Addr) bool {
	return uintptr(a) >= p.start && uintptr(a) < p.end
}

// Reset forgets every block. Memory already handed out must not be used afterwards.
func (p *Pool) Reset() {
	p.cursor = 0
	p.freeHead = 0
}

// PoolStats is a snapshot of the occupancy of a pool.
type PoolStats struct {
	BlockSize int
	Capacity  int
	// Bumped is the number of blocks ever bump allocated.
	Bumped int
	// Free is the number of blocks on the free list.
	Free int
	// InUse is the number of blocks currently held by callers.
	InUse int
}

// Stats walks the free list and returns the occupancy of the pool.
// It costs O(free blocks).
func (p *Pool) Stats() PoolStats {
	free := 0
	// bounded by cursor so a corrupted list can't loop forever
	for a := p.freeHead; a != 0 && free < p.cursor; free++ {
		a = unsafex.LoadWord(p.at(a))
	}
	return PoolStats{
		BlockSize: p.blockSize,
		Capacity:  p.capacity,
		Bumped:    p.cursor,
		Free:      free,
		InUse:     p.cursor - free,
	}
}
