// Package imageio converts between encoded raster files and the
// single-channel integer images the compressor works on.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"

	"qimagecompress/internal/models"
)

// Luminance weights applied to the red, green and blue channels.
const (
	weightR = 0.2989
	weightG = 0.5870
	weightB = 0.1140
)

// ErrBitDepth is returned for a bit depth outside [1, 16].
var ErrBitDepth = errors.New("bit depth must be between 1 and 16")

// White returns the maximum intensity 2^bitDepth - 1.
func White(bitDepth int) float64 {
	return float64(uint32(1)<<bitDepth - 1)
}

// Load decodes the image at path (PNG, JPEG, BMP or TIFF) and converts it
// to a bitDepth-bit grayscale image. A non-zero rows and cols resizes the
// decoded raster first.
func Load(path string, bitDepth, rows, cols int) (models.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.Image{}, err
	}
	defer file.Close()

	img, err := Decode(file, bitDepth, rows, cols)
	if err != nil {
		return models.Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode is Load for an arbitrary reader.
func Decode(r io.Reader, bitDepth, rows, cols int) (models.Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to decode image: %w", err)
	}
	if rows > 0 && cols > 0 {
		src = Resize(src, rows, cols)
	}
	return FromImage(src, bitDepth)
}

// Resize scales img to rows x cols with Lanczos resampling.
func Resize(img image.Image, rows, cols int) image.Image {
	return resize.Resize(uint(cols), uint(rows), img, resize.Lanczos3)
}

// Upscale enlarges img to rows x cols by pixel replication, keeping the
// blocky look of a low-resolution reconstruction.
func Upscale(img image.Image, rows, cols int) image.Image {
	var dst draw.Image
	switch img.(type) {
	case *image.Gray:
		dst = image.NewGray(image.Rect(0, 0, cols, rows))
	default:
		dst = image.NewGray16(image.Rect(0, 0, cols, rows))
	}
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// FromImage converts img to a bitDepth-bit single-channel image. Gray
// rasters keep their intensity; colour rasters are reduced to luminance.
// Values are scaled to [0, 2^bitDepth-1] and rounded.
func FromImage(img image.Image, bitDepth int) (models.Image, error) {
	if bitDepth < 1 || bitDepth > 16 {
		return models.Image{}, fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}
	white := White(bitDepth)
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()

	gray := img.ColorModel() == color.GrayModel || img.ColorModel() == color.Gray16Model
	pix := make([]uint32, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			var lum float64
			if gray {
				lum = float64(color.Gray16Model.Convert(c).(color.Gray16).Y) / 0xffff
			} else if cc, ok := colorful.MakeColor(c); ok {
				lum = weightR*cc.R + weightG*cc.G + weightB*cc.B
			}
			pix[y*cols+x] = uint32(math.Round(clamp(lum, 0, 1) * white))
		}
	}
	return models.NewImage(rows, cols, pix)
}

// ToImage renders m as a grayscale raster. Values are rounded and clamped
// to [0, 2^bitDepth-1], then stored in an 8-bit raster when bitDepth <= 8
// and a 16-bit raster otherwise, without rescaling.
func ToImage(m mat.Matrix, bitDepth int) image.Image {
	white := White(bitDepth)
	rows, cols := m.Dims()
	rect := image.Rect(0, 0, cols, rows)

	if bitDepth <= 8 {
		img := image.NewGray(rect)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				img.SetGray(x, y, color.Gray{Y: uint8(math.Round(clamp(m.At(y, x), 0, white)))})
			}
		}
		return img
	}

	img := image.NewGray16(rect)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(clamp(m.At(y, x), 0, white)))})
		}
	}
	return img
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
