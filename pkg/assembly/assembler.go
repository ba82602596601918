// Package assembly reassembles per-patch probability vectors into an image
// and rescales it for display.
package assembly

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"qimagecompress/pkg/tiling"
)

var (
	// ErrNonSquare is returned when the patch count is not a perfect square.
	ErrNonSquare = errors.New("patch count is not a perfect square")

	// ErrPatchShape is returned when a vector cannot be laid out as a square
	// patch or when patches differ in length.
	ErrPatchShape = errors.New("inconsistent patch shape")

	// ErrEmptyImage is returned when rescaling an image with no positive value.
	ErrEmptyImage = errors.New("image has no positive intensity")
)

// Assemble tiles S probability vectors of length P into a
// sqrt(S)*sqrt(P) square grid. Vector k fills the block at tile row
// k / sqrt(S), tile column k % sqrt(S), row-major within the block.
//
// The result is the raw probability density; see Rescale.
func Assemble(vectors [][]float64) (*mat.Dense, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no patches", ErrNonSquare)
	}
	if _, ok := tiling.SquareRoot(len(vectors)); !ok {
		return nil, fmt.Errorf("%w: %d patches", ErrNonSquare, len(vectors))
	}

	size := len(vectors[0])
	side, ok := tiling.SquareRoot(size)
	if !ok || side == 0 {
		return nil, fmt.Errorf("%w: patch length %d is not a perfect square", ErrPatchShape, size)
	}
	for k, v := range vectors {
		if len(v) != size {
			return nil, fmt.Errorf("%w: patch %d has length %d, expected %d", ErrPatchShape, k, len(v), size)
		}
	}

	grid, err := tiling.SquareGrid(len(vectors), side)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(grid.Rows(), grid.Cols(), nil)
	for k, v := range vectors {
		for i, p := range v {
			r, c := grid.Pixel(k, i)
			out.Set(r, c, p)
		}
	}
	return out, nil
}

// Rescale returns a copy of img scaled so its maximum equals white.
func Rescale(img mat.Matrix, white float64) (*mat.Dense, error) {
	peak := mat.Max(img)
	if peak <= 0 {
		return nil, ErrEmptyImage
	}
	var out mat.Dense
	out.Scale(white/peak, img)
	return &out, nil
}
