// Package tiling holds the index arithmetic shared by the patch splitter and
// the image assembler. Patches are numbered in row-major block order: tile
// rows outer, tile columns inner.
package tiling

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrIndivisible is returned when an image cannot be split into whole tiles.
var ErrIndivisible = errors.New("image is not divisible into patches")

// Grid describes how an image of TileRows*PatchRows by TileCols*PatchCols
// pixels is partitioned into patches.
type Grid struct {
	TileRows, TileCols   int
	PatchRows, PatchCols int
}

// NewGrid computes the tile grid of a rows x cols image cut into
// patchRows x patchCols patches.
func NewGrid(rows, cols, patchRows, patchCols int) (Grid, error) {
	if patchRows <= 0 || patchCols <= 0 {
		return Grid{}, fmt.Errorf("%w: patch size %dx%d must be positive", ErrIndivisible, patchRows, patchCols)
	}
	if rows <= 0 || cols <= 0 {
		return Grid{}, fmt.Errorf("%w: image size %dx%d must be positive", ErrIndivisible, rows, cols)
	}
	if rows%patchRows != 0 || cols%patchCols != 0 {
		return Grid{}, fmt.Errorf("%w: %dx%d image, %dx%d patches", ErrIndivisible, rows, cols, patchRows, patchCols)
	}
	return Grid{
		TileRows:  rows / patchRows,
		TileCols:  cols / patchCols,
		PatchRows: patchRows,
		PatchCols: patchCols,
	}, nil
}

// Count returns the number of patches.
func (g Grid) Count() int {
	return g.TileRows * g.TileCols
}

// Rows returns the pixel height of the tiled image.
func (g Grid) Rows() int {
	return g.TileRows * g.PatchRows
}

// Cols returns the pixel width of the tiled image.
func (g Grid) Cols() int {
	return g.TileCols * g.PatchCols
}

// Tile returns the tile coordinates of patch index.
func (g Grid) Tile(index int) (tileRow, tileCol int) {
	return index / g.TileCols, index % g.TileCols
}

// Index is the inverse of Tile.
func (g Grid) Index(tileRow, tileCol int) int {
	return tileRow*g.TileCols + tileCol
}

// Origin returns the pixel coordinates of the top-left corner of patch index.
func (g Grid) Origin(index int) (row, col int) {
	tr, tc := g.Tile(index)
	return tr * g.PatchRows, tc * g.PatchCols
}

// Pixel maps offset i inside the row-major flattening of patch index to
// image pixel coordinates.
func (g Grid) Pixel(index, i int) (row, col int) {
	r0, c0 := g.Origin(index)
	return r0 + i/g.PatchCols, c0 + i%g.PatchCols
}

// Square reports whether the tile arrangement is square.
func (g Grid) Square() bool {
	return g.TileRows == g.TileCols
}

// SquareGrid returns the grid of n square patches of the given side, arranged
// sqrt(n) x sqrt(n). It fails when n is not a perfect square.
func SquareGrid(n, side int) (Grid, error) {
	k, ok := SquareRoot(n)
	if !ok {
		return Grid{}, fmt.Errorf("patch count %d is not a perfect square", n)
	}
	if side <= 0 {
		return Grid{}, fmt.Errorf("patch side %d must be positive", side)
	}
	return Grid{TileRows: k, TileCols: k, PatchRows: side, PatchCols: side}, nil
}

// SquareRoot returns the integer square root of n and whether n is a
// perfect square.
func SquareRoot(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	r := 0
	for (r+1)*(r+1) <= n {
		r++
	}
	return r, r*r == n
}

// Log2 returns log2(n) and whether n is a positive power of two.
func Log2(n int) (int, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	return bits.TrailingZeros(uint(n)), true
}
