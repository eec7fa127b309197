package malloc

import "github.com/cockroachdb/errors"

var (
	// ErrExhausted is returned when no pool from the best fit up to the largest one has a block left.
	ErrExhausted = errors.New("malloc: out of memory")

	// ErrUnsupported is returned by Grow and Shrink when the block is not allowed to move.
	ErrUnsupported = errors.New("malloc: in-place reallocation is not supported")

	// ErrBadResize is returned by Grow with a smaller size and by Shrink with a larger one.
	ErrBadResize = errors.New("malloc: resize goes the wrong way")
)
