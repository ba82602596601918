package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"qimagecompress/internal/models"
)

// ManifestFile is the name of the run manifest inside the run directory.
const ManifestFile = "manifest.yaml"

// Manifest records what a run did and which files it produced.
type Manifest struct {
	RunID   string    `yaml:"runId"`
	Created time.Time `yaml:"created"`
	Input   string    `yaml:"input"`

	Params RunParams `yaml:"params"`

	InputFiles []string     `yaml:"inputFiles,omitempty"`
	Levels     []LevelEntry `yaml:"levels"`
}

// RunParams are the settings a run was made with.
type RunParams struct {
	Rows       int    `yaml:"rows"`
	Cols       int    `yaml:"cols"`
	PatchRows  int    `yaml:"patchRows"`
	PatchCols  int    `yaml:"patchCols"`
	Qubits     int    `yaml:"qubits"`
	BitDepth   int    `yaml:"bitDepth"`
	ShotPolicy string `yaml:"shotPolicy"`
	Mixing     bool   `yaml:"mixing"`
	KeepNorm   bool   `yaml:"keepNorm"`
	Exact      bool   `yaml:"exact"`
	Seed       uint64 `yaml:"seed"`
}

// LevelEntry summarises one truncation level.
type LevelEntry struct {
	Level   int            `yaml:"level"`
	Shots   int            `yaml:"shots"`
	Metrics models.Metrics `yaml:"metrics"`
	Files   []string       `yaml:"files,omitempty"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(input string, params RunParams) *Manifest {
	return &Manifest{
		RunID:   uuid.NewString(),
		Created: time.Now().UTC(),
		Input:   input,
		Params:  params,
	}
}

// AddLevel appends the summary of res.
func (m *Manifest) AddLevel(res models.LevelResult, files []string) {
	m.Levels = append(m.Levels, LevelEntry{
		Level:   res.Level,
		Shots:   res.Shots,
		Metrics: res.Metrics,
		Files:   files,
	})
}

// WriteManifest saves m as YAML in the run directory and returns its path.
func (w *Writer) WriteManifest(m *Manifest) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(w.dir, ManifestFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// LoadManifest reads a manifest written by WriteManifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if _, err := uuid.Parse(m.RunID); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", m.RunID, err)
	}
	return &m, nil
}
