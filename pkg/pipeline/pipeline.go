// Package pipeline drives progressive compression of an image: for every
// truncation level it encodes the patches, simulates their circuits
// concurrently, reconstructs the probability vectors and reassembles the
// image.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"qimagecompress/internal/models"
	"qimagecompress/pkg/assembly"
	"qimagecompress/pkg/circuit"
	"qimagecompress/pkg/imageio"
	"qimagecompress/pkg/metrics"
	"qimagecompress/pkg/reconstruction"
	"qimagecompress/pkg/simulator"
	"qimagecompress/pkg/tiling"
	"qimagecompress/pkg/vectorize"
)

var (
	// ErrNonSquareGrid is returned when the image does not tile into an
	// equal number of patch rows and columns, which the assembler needs.
	ErrNonSquareGrid = errors.New("patch grid is not square")

	// ErrNoLevels is returned when no truncation level can be run for the
	// patch size.
	ErrNoLevels = errors.New("no valid truncation level")

	// ErrTooManyCounts is returned when an executor reports more outcomes
	// than shots requested.
	ErrTooManyCounts = errors.New("executor returned more counts than shots")
)

// ProgressCallback is called after each patch of a level completes
type ProgressCallback func(level, done, total int)

// Params holds the compression parameters.
type Params struct {
	// PatchRows and PatchCols are the patch size; the area must be 2^n0 with n0 even
	PatchRows int
	PatchCols int

	// BitDepth is the intensity depth; white is 2^BitDepth - 1
	BitDepth int

	// Levels are the truncation levels n2 to run, in order. Empty means
	// every even level from n0-2 down to 2.
	Levels []int

	// ShotPolicy and Shots choose the per-patch measurement count
	ShotPolicy ShotPolicy
	Shots      int

	// Mixing applies the Hadamard layers around the transform
	Mixing bool

	// KeepNorm scales each reconstructed patch by its intensity sum
	KeepNorm bool

	// Workers bounds how many patches are simulated at once, 0 for NumCPU
	Workers int

	// Retries is the number of extra attempts for a failed patch
	Retries int

	// PatchTimeout bounds one attempt of one patch, 0 for no limit
	PatchTimeout time.Duration

	// Progress, when set, receives per-patch progress
	Progress ProgressCallback

	// Logger receives run logs; nil discards them
	Logger *log.Logger
}

// DefaultParams returns the parameters of a standard 8x8-patch, 8-bit run.
func DefaultParams() Params {
	return Params{
		PatchRows:  8,
		PatchCols:  8,
		BitDepth:   8,
		ShotPolicy: ShotsReasonable,
		Mixing:     true,
		Workers:    runtime.NumCPU(),
		Retries:    1,
	}
}

// PatchError reports a patch that could not be simulated.
type PatchError struct {
	Level    int
	Patch    int
	Attempts int
	Err      error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("level %d patch %d failed after %d attempt(s): %v", e.Level, e.Patch, e.Attempts, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// Compressor runs the compression sweep.
type Compressor struct {
	params  Params
	factory simulator.Factory
	logger  *log.Logger
	n0      int
	levels  []int
}

// New validates params and returns a Compressor that simulates patches
// with executors handed out by factory.
func New(params Params, factory simulator.Factory) (*Compressor, error) {
	if factory == nil {
		return nil, errors.New("executor factory is required")
	}
	n0, err := vectorize.Qubits(params.PatchRows, params.PatchCols)
	if err != nil {
		return nil, err
	}
	if n0%2 != 0 {
		return nil, fmt.Errorf("%w: %d-qubit patches give non-square reconstructions", ErrNoLevels, n0)
	}
	if params.BitDepth < 1 || params.BitDepth > 16 {
		return nil, fmt.Errorf("%w: %d", imageio.ErrBitDepth, params.BitDepth)
	}
	if params.ShotPolicy == ShotsFixed && params.Shots <= 0 {
		return nil, fmt.Errorf("%w: fixed policy with %d shots", simulator.ErrShots, params.Shots)
	}
	if params.Retries < 0 {
		return nil, fmt.Errorf("retries %d must not be negative", params.Retries)
	}

	levels := params.Levels
	if len(levels) == 0 {
		levels = lo.RangeWithSteps(n0-2, 0, -2)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: %d-qubit patches", ErrNoLevels, n0)
	}
	for _, n2 := range levels {
		if err := circuit.ValidateLevel(n0, n2); err != nil {
			return nil, err
		}
	}

	if params.Workers <= 0 {
		params.Workers = runtime.NumCPU()
	}
	logger := params.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Compressor{
		params:  params,
		factory: factory,
		logger:  logger,
		n0:      n0,
		levels:  append([]int(nil), levels...),
	}, nil
}

// Qubits returns the register size n0 of one patch.
func (c *Compressor) Qubits() int {
	return c.n0
}

// Levels returns the truncation levels Process runs, in order.
func (c *Compressor) Levels() []int {
	return append([]int(nil), c.levels...)
}

// Shots returns the per-patch shot count at level n2.
func (c *Compressor) Shots(n2 int) int {
	return c.params.ShotPolicy.Shots(n2, c.params.BitDepth, c.params.Shots)
}

// Validate checks that img can be processed: it must tile exactly into a
// square grid of patches, and every patch needs a nonzero total intensity.
func (c *Compressor) Validate(img models.Image) error {
	_, _, err := c.encode(img)
	return err
}

func (c *Compressor) encode(img models.Image) ([]models.AmplitudeState, []float64, error) {
	grid, err := tiling.NewGrid(img.Rows, img.Cols, c.params.PatchRows, c.params.PatchCols)
	if err != nil {
		return nil, nil, err
	}
	if !grid.Square() {
		return nil, nil, fmt.Errorf("%w: %dx%d patches", ErrNonSquareGrid, grid.TileRows, grid.TileCols)
	}
	return vectorize.Vectorize(img, c.params.PatchRows, c.params.PatchCols, c.params.KeepNorm)
}

// Process runs every level in order. It stops at the first failed level and
// returns the levels completed before it together with the error.
func (c *Compressor) Process(ctx context.Context, img models.Image) ([]models.LevelResult, error) {
	results := make([]models.LevelResult, 0, len(c.levels))
	for _, n2 := range c.levels {
		res, err := c.ProcessLevel(ctx, img, n2)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ProcessLevel reconstructs img at truncation level n2.
func (c *Compressor) ProcessLevel(ctx context.Context, img models.Image, n2 int) (models.LevelResult, error) {
	if err := circuit.ValidateLevel(c.n0, n2); err != nil {
		return models.LevelResult{}, err
	}

	states, norms, err := c.encode(img)
	if err != nil {
		return models.LevelResult{}, fmt.Errorf("level %d: %w", n2, err)
	}

	shots := c.Shots(n2)
	start := time.Now()
	c.logger.Printf("level %d: %d patches, %d qubits -> %d, %d shots each", n2, len(states), c.n0, n2, shots)

	vectors, err := c.simulate(ctx, n2, states, norms, shots)
	if err != nil {
		return models.LevelResult{}, err
	}

	raw, err := assembly.Assemble(vectors)
	if err != nil {
		return models.LevelResult{}, fmt.Errorf("level %d: %w", n2, err)
	}
	white := imageio.White(c.params.BitDepth)
	scaled, err := assembly.Rescale(raw, white)
	if err != nil {
		return models.LevelResult{}, fmt.Errorf("level %d: %w", n2, err)
	}
	m, err := metrics.Compare(img, scaled, white)
	if err != nil {
		return models.LevelResult{}, fmt.Errorf("level %d: %w", n2, err)
	}

	c.logger.Printf("level %d done in %s: MAE %.3f, PSNR %.2f dB, SSIM %.4f", n2, time.Since(start).Round(time.Millisecond), m.MAE, m.PSNR, m.SSIM)
	return models.LevelResult{
		Level:   n2,
		Shots:   shots,
		Raw:     raw,
		Image:   scaled,
		Metrics: m,
	}, nil
}

// simulate runs every patch of one level on the worker pool. A failing
// patch does not stop its siblings; all patch errors are joined.
func (c *Compressor) simulate(ctx context.Context, n2 int, states []models.AmplitudeState, norms []float64, shots int) ([][]float64, error) {
	total := len(states)
	vectors := make([][]float64, total)
	errs := make([]error, total)

	var mu sync.Mutex
	done := 0

	var g errgroup.Group
	g.SetLimit(c.params.Workers)
	for idx := range states {
		idx := idx
		g.Go(func() error {
			vectors[idx], errs[idx] = c.runPatch(ctx, n2, idx, states[idx], norms[idx], shots)

			mu.Lock()
			done++
			if c.params.Progress != nil {
				c.params.Progress(n2, done, total)
			}
			mu.Unlock()
			return nil
		})
	}
	// Workers always return nil; patch failures are collected in errs.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("level %d: %w", n2, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return vectors, nil
}

// runPatch simulates one patch, retrying failed attempts.
func (c *Compressor) runPatch(ctx context.Context, n2, idx int, state models.AmplitudeState, norm float64, shots int) ([]float64, error) {
	var opts []circuit.Option
	if !c.params.Mixing {
		opts = append(opts, circuit.WithoutMixing())
	}
	spec, err := circuit.Build(state, c.n0, n2, opts...)
	if err != nil {
		return nil, &PatchError{Level: n2, Patch: idx, Attempts: 0, Err: err}
	}

	var lastErr error
	attempts := 0
	for attempts <= c.params.Retries {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++

		vec, err := c.attempt(ctx, spec, n2, idx, norm, shots)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempts <= c.params.Retries {
			c.logger.Printf("Warning: level %d patch %d attempt %d failed: %v", n2, idx, attempts, err)
		}
	}
	return nil, &PatchError{Level: n2, Patch: idx, Attempts: attempts, Err: lastErr}
}

func (c *Compressor) attempt(ctx context.Context, spec *circuit.Spec, n2, idx int, norm float64, shots int) ([]float64, error) {
	if c.params.PatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.params.PatchTimeout)
		defer cancel()
	}

	counts, err := c.factory(n2, idx).Execute(ctx, spec, shots)
	if err != nil {
		return nil, err
	}
	if got := counts.Total(); got > shots {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCounts, got, shots)
	}
	return reconstruction.Reconstruct(counts, n2, norm)
}
