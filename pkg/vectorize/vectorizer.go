// Package vectorize splits an image into patches and amplitude-encodes each
// patch as a normalized quantum state.
package vectorize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"qimagecompress/internal/models"
	"qimagecompress/pkg/tiling"
)

var (
	// ErrPatchArea is returned when the patch pixel count is not a power of two.
	ErrPatchArea = errors.New("patch area is not a power of two")

	// ErrDegeneratePatch is returned for a patch whose intensities sum to zero.
	// Such a patch carries no amplitude mass and cannot be encoded.
	ErrDegeneratePatch = errors.New("degenerate patch: zero total intensity")
)

// Qubits returns the register size n0 needed to hold one patchRows x
// patchCols patch, i.e. log2 of the patch area.
func Qubits(patchRows, patchCols int) (int, error) {
	if patchRows <= 0 || patchCols <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrPatchArea, patchRows, patchCols)
	}
	n0, ok := tiling.Log2(patchRows * patchCols)
	if !ok {
		return 0, fmt.Errorf("%w: %dx%d = %d pixels", ErrPatchArea, patchRows, patchCols, patchRows*patchCols)
	}
	return n0, nil
}

// Patches splits img into patchRows x patchCols tiles in row-major block
// order, each flattened row-major.
func Patches(img models.Image, patchRows, patchCols int) ([]models.Patch, error) {
	grid, err := tiling.NewGrid(img.Rows, img.Cols, patchRows, patchCols)
	if err != nil {
		return nil, err
	}

	area := patchRows * patchCols
	patches := make([]models.Patch, grid.Count())
	for idx := range patches {
		tr, tc := grid.Tile(idx)
		pixels := make([]uint32, area)
		for i := range pixels {
			r, c := grid.Pixel(idx, i)
			pixels[i] = img.At(r, c)
		}
		patches[idx] = models.Patch{Index: idx, Row: tr, Col: tc, Pixels: pixels}
	}
	return patches, nil
}

// Vectorize amplitude-encodes every patch of img. Element i of a state is
// sqrt(pixel_i / sum), where sum is the patch's total intensity.
//
// When keepNorm is false the returned normalization constants are all 1.0.
// This is the reconstruction default: the final rescale uses the maximum
// of the output image, so absolute brightness between patches is dropped
// and only contrast within each patch survives. keepNorm=true returns the
// true patch sums for brightness-preserving reconstruction.
func Vectorize(img models.Image, patchRows, patchCols int, keepNorm bool) ([]models.AmplitudeState, []float64, error) {
	if _, err := Qubits(patchRows, patchCols); err != nil {
		return nil, nil, err
	}

	patches, err := Patches(img, patchRows, patchCols)
	if err != nil {
		return nil, nil, err
	}

	states := make([]models.AmplitudeState, len(patches))
	norms := make([]float64, len(patches))
	for idx, p := range patches {
		state, sum, err := Encode(p.Pixels)
		if err != nil {
			return nil, nil, fmt.Errorf("patch %d (tile %d,%d): %w", idx, p.Row, p.Col, err)
		}
		states[idx] = state
		norms[idx] = sum
	}

	if !keepNorm {
		for i := range norms {
			norms[i] = 1
		}
	}
	return states, norms, nil
}

// Encode converts one flattened patch into its amplitude state and returns
// the patch's total intensity alongside it.
func Encode(pixels []uint32) (models.AmplitudeState, float64, error) {
	values := make([]float64, len(pixels))
	for i, v := range pixels {
		values[i] = float64(v)
	}

	sum := floats.Sum(values)
	if sum == 0 {
		return nil, 0, ErrDegeneratePatch
	}

	floats.Scale(1/sum, values)
	for i, v := range values {
		values[i] = math.Sqrt(v)
	}
	return models.AmplitudeState(values), sum, nil
}
