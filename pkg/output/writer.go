// Package output persists the artifacts of a compression run: integer text
// matrices, binary float blobs, grayscale rasters and the run manifest.
package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"qimagecompress/internal/models"
	"qimagecompress/pkg/imageio"
)

const (
	dataDir   = "data"
	imagesDir = "images"
)

// Options selects which artifacts are written.
type Options struct {
	SaveText       bool
	SaveBinary     bool
	CompressBinary bool
	SavePNG        bool
	SaveUpscaled   bool
}

// Writer writes artifacts below a run directory.
type Writer struct {
	dir      string
	bitDepth int
	opts     Options
}

// NewWriter creates the run directory layout and returns a writer for it.
func NewWriter(dir string, bitDepth int, opts Options) (*Writer, error) {
	for _, sub := range []string{dataDir, imagesDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return &Writer{dir: dir, bitDepth: bitDepth, opts: opts}, nil
}

// Dir returns the run directory.
func (w *Writer) Dir() string {
	return w.dir
}

// InputName is the artifact base name of the source image, keyed by the
// qubit count log2(rows*cols) its pixels would need.
func InputName(img models.Image) string {
	return fmt.Sprintf("input%dq", bits.Len(uint(img.Rows*img.Cols))-1)
}

// LevelName is the artifact base name of the reconstruction at level n2.
func LevelName(n2 int) string {
	return fmt.Sprintf("output%dq", n2)
}

// WriteInput saves the source image and returns the paths written,
// relative to the run directory.
func (w *Writer) WriteInput(img models.Image) ([]string, error) {
	return w.write(InputName(img), img.Dense(), 0, 0)
}

// WriteLevel saves the rescaled reconstruction of one level. The upscaled
// preview, when enabled, is enlarged to rows x cols.
func (w *Writer) WriteLevel(res models.LevelResult, rows, cols int) ([]string, error) {
	if res.Image == nil {
		return nil, fmt.Errorf("level %d has no image", res.Level)
	}
	return w.write(LevelName(res.Level), res.Image, rows, cols)
}

func (w *Writer) write(name string, m mat.Matrix, rows, cols int) ([]string, error) {
	var files []string

	if w.opts.SaveText {
		rel := filepath.Join(dataDir, name+".txt")
		if err := w.create(rel, func(f io.Writer) error { return WriteText(f, m) }); err != nil {
			return files, err
		}
		files = append(files, rel)
	}

	if w.opts.SaveBinary {
		rel := filepath.Join(dataDir, name+".bin")
		if w.opts.CompressBinary {
			rel += ".zst"
		}
		if err := w.create(rel, func(f io.Writer) error { return w.writeBinary(f, m) }); err != nil {
			return files, err
		}
		files = append(files, rel)
	}

	if w.opts.SavePNG || w.opts.SaveUpscaled {
		img := imageio.ToImage(m, w.bitDepth)
		if w.opts.SavePNG {
			rel := filepath.Join(imagesDir, name+".png")
			if err := w.create(rel, func(f io.Writer) error { return png.Encode(f, img) }); err != nil {
				return files, err
			}
			files = append(files, rel)
		}
		r, c := m.Dims()
		if w.opts.SaveUpscaled && rows > 0 && cols > 0 && (rows != r || cols != c) {
			rel := filepath.Join(imagesDir, name+"-upscaled.png")
			up := imageio.Upscale(img, rows, cols)
			if err := w.create(rel, func(f io.Writer) error { return png.Encode(f, up) }); err != nil {
				return files, err
			}
			files = append(files, rel)
		}
	}

	return files, nil
}

func (w *Writer) writeBinary(f io.Writer, m mat.Matrix) error {
	if !w.opts.CompressBinary {
		return WriteBinary(f, m)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := WriteBinary(enc, m); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func (w *Writer) create(rel string, fn func(io.Writer) error) error {
	path := filepath.Join(w.dir, rel)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", rel, err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	if err := fn(buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return file.Close()
}

// WriteText writes m as whitespace-separated unsigned integers, one matrix
// row per line. Values are truncated towards zero; negatives become 0.
func WriteText(w io.Writer, m mat.Matrix) error {
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				if _, err := io.WriteString(w, " "); err != nil {
					return err
				}
			}
			v := math.Max(0, m.At(r, c))
			if _, err := io.WriteString(w, strconv.FormatUint(uint64(v), 10)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// ReadText parses a matrix written by WriteText.
func ReadText(r io.Reader) (*mat.Dense, error) {
	var data []float64
	rows, cols := 0, -1
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if cols >= 0 && len(fields) != cols {
			return nil, fmt.Errorf("row %d has %d values, expected %d", rows, len(fields), cols)
		}
		cols = len(fields)
		for _, f := range fields {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", rows, err)
			}
			data = append(data, float64(v))
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	return mat.NewDense(rows, cols, data), nil
}

// WriteBinary writes a little-endian uint32 rows, cols header followed by
// the matrix as row-major float64 values.
func WriteBinary(w io.Writer, m mat.Matrix) error {
	rows, cols := m.Dims()
	if err := binary.Write(w, binary.LittleEndian, [2]uint32{uint32(rows), uint32(cols)}); err != nil {
		return err
	}
	row := make([]float64, cols)
	for r := 0; r < rows; r++ {
		for c := range row {
			row[c] = m.At(r, c)
		}
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return nil
}

// ReadBinary parses a matrix written by WriteBinary.
func ReadBinary(r io.Reader) (*mat.Dense, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	rows, cols := int(header[0]), int(header[1])
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", rows, cols)
	}
	data := make([]float64, rows*cols)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return mat.NewDense(rows, cols, data), nil
}

// ReadBinaryFile reads a .bin or zstd-compressed .bin.zst artifact.
func ReadBinaryFile(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = bufio.NewReader(file)
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}
	return ReadBinary(r)
}

// ReadPNG decodes a grayscale PNG artifact.
func ReadPNG(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return png.Decode(file)
}
