package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Image is a single-channel grid of non-negative integer intensities.
// It is treated as immutable once loaded.
type Image struct {
	// Rows is the number of pixel rows
	Rows int

	// Cols is the number of pixel columns
	Cols int

	// Pix holds the intensities in row-major order
	Pix []uint32
}

// NewImage creates an image from row-major pixel data.
func NewImage(rows, cols int, pix []uint32) (Image, error) {
	if rows <= 0 || cols <= 0 {
		return Image{}, fmt.Errorf("image dimensions must be positive, got %dx%d", rows, cols)
	}
	if len(pix) != rows*cols {
		return Image{}, fmt.Errorf("pixel count %d does not match %dx%d", len(pix), rows, cols)
	}
	p := make([]uint32, len(pix))
	copy(p, pix)
	return Image{Rows: rows, Cols: cols, Pix: p}, nil
}

// At returns the intensity at row r, column c.
func (im Image) At(r, c int) uint32 {
	return im.Pix[r*im.Cols+c]
}

// Dense returns the image as a float matrix.
func (im Image) Dense() *mat.Dense {
	data := make([]float64, len(im.Pix))
	for i, v := range im.Pix {
		data[i] = float64(v)
	}
	return mat.NewDense(im.Rows, im.Cols, data)
}

// Patch is a contiguous rectangular tile of an Image
type Patch struct {
	// Index is the position of the patch in row-major tiling order
	Index int

	// Row and Col are the tile coordinates of the patch
	Row, Col int

	// Pixels holds the patch intensities flattened row-major
	Pixels []uint32
}

// AmplitudeState is a real, non-negative probability amplitude vector.
// The sum of its squares is 1.
type AmplitudeState []float64

// ProbabilityVector is the dense estimated outcome distribution of a
// truncated register, indexed by the integer value of the bitstring.
type ProbabilityVector []float64

// Metrics holds the reconstruction quality figures for one truncation level.
type Metrics struct {
	// MAE is the mean absolute pixel difference against the original
	MAE float64 `yaml:"mae"`

	// RMSE is the root mean square pixel difference
	RMSE float64 `yaml:"rmse"`

	// PSNR is the peak signal to noise ratio in dB
	PSNR float64 `yaml:"psnr"`

	// SSIM is the global structural similarity index
	SSIM float64 `yaml:"ssim"`

	// EntropyDiff is the absolute difference of the intensity histogram entropies
	EntropyDiff float64 `yaml:"entropyDiff"`

	// MI is the Gaussian estimate of the mutual information between the images
	MI float64 `yaml:"mi"`
}

// LevelResult is the outcome of reconstructing an image at one truncation level.
type LevelResult struct {
	// Level is the number of retained qubits (n2)
	Level int

	// Shots is the number of measurements simulated per patch
	Shots int

	// Raw is the assembled, un-rescaled probability grid
	Raw *mat.Dense

	// Image is Raw rescaled to the target white level
	Image *mat.Dense

	// Metrics compares Image against the source image
	Metrics Metrics
}
