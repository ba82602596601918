package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"

	"qimagecompress/pkg/imageio"
)

// ErrNoArtifact is returned when none of a level's files holds a matrix.
var ErrNoArtifact = errors.New("no readable matrix artifact")

// Level returns the manifest entry for truncation level n2.
func (m *Manifest) Level(n2 int) (LevelEntry, bool) {
	for _, lvl := range m.Levels {
		if lvl.Level == n2 {
			return lvl, true
		}
	}
	return LevelEntry{}, false
}

// ReadMatrix loads a matrix from the artifacts in files, relative to dir.
// Binary blobs are preferred since they keep full precision, then the
// integer text matrix, then the PNG raster decoded at bitDepth.
func ReadMatrix(dir string, files []string, bitDepth int) (*mat.Dense, error) {
	var text, raster string
	for _, rel := range files {
		path := filepath.Join(dir, rel)
		switch {
		case strings.HasSuffix(rel, ".bin"), strings.HasSuffix(rel, ".bin.zst"):
			return ReadBinaryFile(path)
		case strings.HasSuffix(rel, ".txt"):
			text = path
		case strings.HasSuffix(rel, ".png") && !strings.HasSuffix(rel, "-upscaled.png"):
			raster = path
		}
	}

	if text != "" {
		file, err := os.Open(text)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return ReadText(file)
	}
	if raster != "" {
		img, err := ReadPNG(raster)
		if err != nil {
			return nil, err
		}
		gray, err := imageio.FromImage(img, bitDepth)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", raster, err)
		}
		return gray.Dense(), nil
	}
	return nil, ErrNoArtifact
}
