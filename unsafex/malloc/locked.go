package malloc

import (
	"sync"
	"unsafe"
)

// Locked serializes the operations of a Heap with a mutex.
type Locked struct {
	mu sync.Mutex
	h  *Heap
}

// NewLocked wraps h. h must not be used directly afterwards.
func NewLocked(h *Heap) *Locked {
	return &Locked{h: h}
}

// Alloc calls Heap.Alloc under the lock.
func (l *Locked) Alloc(layout Layout, init AllocInit) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Alloc(layout, init)
}

// Dealloc calls Heap.Dealloc under the lock.
func (l *Locked) Dealloc(ptr unsafe.Pointer, layout Layout) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h.Dealloc(ptr, layout)
}

// Grow calls Heap.Grow under the lock.
func (l *Locked) Grow(ptr unsafe.Pointer, layout Layout, newSize int, placement Placement, init AllocInit) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Grow(ptr, layout, newSize, placement, init)
}

// Shrink calls Heap.Shrink under the lock.
func (l *Locked) Shrink(ptr unsafe.Pointer, layout Layout, newSize int, placement Placement) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Shrink(ptr, layout, newSize, placement)
}

// Stats calls Heap.Stats under the lock.
func (l *Locked) Stats() []PoolStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Stats()
}

// Do runs f with exclusive access to the heap.
// f must not keep h after returning.
func (l *Locked) Do(f func(h *Heap)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(l.h)
}
