package coord

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when batch arguments that must co-vary have
// incompatible lengths.
var ErrShapeMismatch = errors.New("shape mismatch")

// BroadcastLen returns the common length of a set of batch arguments. Every
// length must equal the longest one or be 1; a length-1 argument is repeated
// like a scalar. No arguments gives 0.
func BroadcastLen(lens ...int) (int, error) {
	if len(lens) == 0 {
		return 0, nil
	}
	n := -1
	for _, l := range lens {
		if l == 1 {
			continue
		}
		if n == -1 {
			n = l
			continue
		}
		if l != n {
			return 0, fmt.Errorf("%w: lengths %v cannot be broadcast together", ErrShapeMismatch, lens)
		}
	}
	if n == -1 {
		return 1, nil
	}
	return n, nil
}

// At returns s[i], or s[0] when s is a broadcast scalar.
func At(s []float64, i int) float64 {
	if len(s) == 1 {
		return s[0]
	}
	return s[i]
}
