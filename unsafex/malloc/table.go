package malloc

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Allocator is the access to an ordered table of pools used by the dispatch functions.
//
// Pools must be ordered by strictly increasing block size, and their regions must be
// contiguous and ascending: pool i ends where pool i+1 begins.
// Both lookups (by size and by address) depend on it and it's never checked at runtime.
type Allocator interface {
	// PoolCount returns the number of pools, it never changes.
	PoolCount() int

	// PoolUnchecked returns the ith pool without bounds checking.
	// Calling it with i out of [0, PoolCount()) is undefined behavior.
	PoolUnchecked(i int) *Pool
}

// Class describes a size class of a Table.
type Class struct {
	BlockSize int
	Capacity  int
}

// Bytes returns the size of the region needed by the class.
func (c Class) Bytes() int {
	return c.BlockSize * c.Capacity
}

// Table is a fixed set of pools carved contiguously from one arena.
// It implements Allocator.
type Table struct {
	pools []Pool
}

var _ Allocator = (*Table)(nil)

// ArenaSize returns the number of bytes needed to hold all classes.
func ArenaSize(classes []Class) int {
	n := 0
	for _, c := range classes {
		n += c.Bytes()
	}
	return n
}

// NewTable creates a Table by cutting the regions of classes one after another from mem.
// classes must be sorted by strictly increasing block size.
// The layout is checked once here and is trusted afterwards.
func NewTable(mem []byte, classes []Class) (*Table, error) {
	if len(classes) == 0 {
		return nil, errors.New("no size class")
	}
	base := unsafe.Pointer(unsafe.SliceData(mem))
	pools := make([]Pool, len(classes))
	off := 0
	for i, c := range classes {
		if err := checkClass(c.BlockSize, c.Capacity); err != nil {
			return nil, errors.Wrapf(err, "class %d", i)
		}
		if i > 0 && c.BlockSize <= classes[i-1].BlockSize {
			return nil, errors.Newf("class %d: block size %d must be greater than %d of class %d",
				i, c.BlockSize, classes[i-1].BlockSize, i-1)
		}
		n := c.Bytes()
		if n > math.MaxInt-off || off+n > len(mem) {
			return nil, errors.Newf("arena too small: class %d needs bytes [%d, %d), got %d",
				i, off, off+n, len(mem))
		}
		pools[i] = makePool(unsafe.Add(base, off), c.BlockSize, c.Capacity)
		off += n
	}
	return &Table{pools: pools}, nil
}

// PoolCount implements Allocator.
func (t *Table) PoolCount() int {
	return len(t.pools)
}

// PoolUnchecked implements Allocator.
func (t *Table) PoolUnchecked(i int) *Pool {
	return (*Pool)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(t.pools)), uintptr(i)*unsafe.Sizeof(Pool{})))
}

// PoolsUnchecked returns the pools in [lo, hi) without bounds checking.
// Calling it with 0 <= lo <= hi <= PoolCount() not holding is undefined behavior.
func (t *Table) PoolsUnchecked(lo, hi int) []Pool {
	if lo == hi {
		return nil
	}
	return unsafe.Slice(t.PoolUnchecked(lo), hi-lo)
}

// Pool returns the ith pool, or false if i is out of range.
func (t *Table) Pool(i int) (*Pool, bool) {
	if i < 0 || i >= len(t.pools) {
		return nil, false
	}
	return &t.pools[i], true
}

// Reset forgets every block of every pool.
func (t *Table) Reset() {
	for i := range t.pools {
		t.pools[i].Reset()
	}
}

// Stats returns the occupancy of each pool, in table order.
func (t *Table) Stats() []PoolStats {
	ss := make([]PoolStats, len(t.pools))
	for i := range t.pools {
		ss[i] = t.pools[i].Stats()
	}
	return ss
}
