package malloc

import "fmt"

func Example() {
	classes := []Class{{8, 16}, {32, 16}, {128, 4}}
	arena := make([]byte, ArenaSize(classes))
	h, _ := NewHeap(arena, classes, nil)

	l := MustNewLayout(20, 4)
	b, _ := h.Alloc(l, Zeroed)
	fmt.Printf("b: size=%d\n", b.Size)

	b, _ = h.Grow(b.Ptr, l, 100, MayMove, Zeroed)
	fmt.Printf("grown: size=%d\n", b.Size)

	_, err := h.Shrink(b.Ptr, MustNewLayout(100, 4), 10, InPlace)
	fmt.Println(err)

	h.Dealloc(b.Ptr, MustNewLayout(100, 4))

	// Output:
	// b: size=32
	// grown: size=128
	// malloc: in-place reallocation is not supported
}
