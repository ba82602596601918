package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"qimagecompress/pkg/config"
	"qimagecompress/pkg/imageio"
	"qimagecompress/pkg/output"
	"qimagecompress/pkg/pipeline"
	"qimagecompress/pkg/simulator"
)

type runOptions struct {
	input      string
	configPath string
	outputDir  string
	patchRows  int
	patchCols  int
	bitDepth   int
	levels     []int
	workers    int
	keepNorm   bool
	exact      bool
	seed       uint64
	shotPolicy string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compress an image at every truncation level and save the reconstructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, opts.input, cfg)
		},
	}
	opts.bind(cmd.Flags())
	cmd.MarkFlagRequired("input")
	return cmd
}

func (o *runOptions) bind(fs *flag.FlagSet) {
	fs.StringVar(&o.input, "input", "", "Input image (PNG, JPEG, BMP or TIFF)")
	fs.StringVar(&o.configPath, "config", "config.yaml", "Configuration file")
	fs.StringVar(&o.outputDir, "output", "", "Run directory for artifacts")
	fs.IntVar(&o.patchRows, "patch-rows", 0, "Patch height in pixels")
	fs.IntVar(&o.patchCols, "patch-cols", 0, "Patch width in pixels")
	fs.IntVar(&o.bitDepth, "bitdepth", 0, "Intensity bit depth")
	fs.IntSliceVar(&o.levels, "levels", nil, "Truncation levels n2 to run (default: every even level)")
	fs.IntVar(&o.workers, "workers", 0, "Patches simulated concurrently")
	fs.BoolVar(&o.keepNorm, "keep-norm", false, "Preserve per-patch brightness")
	fs.BoolVar(&o.exact, "exact", false, "Use expected counts instead of sampling")
	fs.Uint64Var(&o.seed, "seed", 0, "Sampling seed")
	fs.StringVar(&o.shotPolicy, "shot-policy", "", "Shot policy: ideal, standard, reasonable, noisy or fixed")
}

// apply overrides cfg with the flags set on the command line.
func (o *runOptions) apply(fs *flag.FlagSet, cfg *config.Config) {
	if fs.Changed("output") {
		cfg.Output.Dir = o.outputDir
	}
	if fs.Changed("patch-rows") {
		cfg.Patch.Rows = o.patchRows
	}
	if fs.Changed("patch-cols") {
		cfg.Patch.Cols = o.patchCols
	}
	if fs.Changed("bitdepth") {
		cfg.Quantum.BitDepth = o.bitDepth
	}
	if fs.Changed("levels") {
		cfg.Quantum.Levels = o.levels
	}
	if fs.Changed("workers") {
		cfg.Processing.Workers = o.workers
	}
	if fs.Changed("keep-norm") {
		cfg.Quantum.KeepNorm = o.keepNorm
	}
	if fs.Changed("exact") {
		cfg.Quantum.Exact = o.exact
	}
	if fs.Changed("seed") {
		cfg.Quantum.Seed = o.seed
	}
	if fs.Changed("shot-policy") {
		cfg.Quantum.ShotPolicy = o.shotPolicy
	}
}

func run(ctx context.Context, input string, cfg *config.Config) error {
	policy, err := pipeline.ParseShotPolicy(cfg.Quantum.ShotPolicy)
	if err != nil {
		return err
	}

	var logger *log.Logger
	if cfg.Output.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	params := pipeline.Params{
		PatchRows:    cfg.Patch.Rows,
		PatchCols:    cfg.Patch.Cols,
		BitDepth:     cfg.Quantum.BitDepth,
		Levels:       cfg.Quantum.Levels,
		ShotPolicy:   policy,
		Shots:        cfg.Quantum.Shots,
		Mixing:       cfg.Quantum.Mixing,
		KeepNorm:     cfg.Quantum.KeepNorm,
		Workers:      cfg.Processing.Workers,
		Retries:      cfg.Processing.Retries,
		PatchTimeout: cfg.Processing.PatchTimeout,
		Logger:       logger,
	}
	if cfg.Output.Verbose {
		params.Progress = func(level, done, total int) {
			fmt.Printf("\rLevel %d: %.1f%% complete", level, float64(done)/float64(total)*100)
			if done == total {
				fmt.Println()
			}
		}
	}

	svOpts := []simulator.Option{simulator.WithSeed(cfg.Quantum.Seed)}
	if cfg.Quantum.Exact {
		svOpts = append(svOpts, simulator.WithExact())
	}
	compressor, err := pipeline.New(params, simulator.NewStateVector(svOpts...).Factory())
	if err != nil {
		return err
	}

	img, err := imageio.Load(input, cfg.Quantum.BitDepth, cfg.Input.ResizeRows, cfg.Input.ResizeCols)
	if err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}
	if err := compressor.Validate(img); err != nil {
		return err
	}

	writer, err := output.NewWriter(cfg.Output.Dir, cfg.Quantum.BitDepth, output.Options{
		SaveText:       cfg.Output.SaveText,
		SaveBinary:     cfg.Output.SaveBinary,
		CompressBinary: cfg.Output.CompressBinary,
		SavePNG:        cfg.Output.SavePNG,
		SaveUpscaled:   cfg.Output.SaveUpscaled,
	})
	if err != nil {
		return err
	}

	manifest := output.NewManifest(input, output.RunParams{
		Rows:       img.Rows,
		Cols:       img.Cols,
		PatchRows:  cfg.Patch.Rows,
		PatchCols:  cfg.Patch.Cols,
		Qubits:     compressor.Qubits(),
		BitDepth:   cfg.Quantum.BitDepth,
		ShotPolicy: policy.String(),
		Mixing:     cfg.Quantum.Mixing,
		KeepNorm:   cfg.Quantum.KeepNorm,
		Exact:      cfg.Quantum.Exact,
		Seed:       cfg.Quantum.Seed,
	})

	fmt.Println("================================")
	fmt.Println("QUANTUM FOURIER TRUNCATION IMAGE COMPRESSION")
	fmt.Printf("Run %s\n", manifest.RunID)
	fmt.Println("================================")
	fmt.Printf("Input: %s (%dx%d, %d-bit)\n", input, img.Rows, img.Cols, cfg.Quantum.BitDepth)
	fmt.Printf("Patches: %dx%d -> %d qubits, levels %v\n", cfg.Patch.Rows, cfg.Patch.Cols, compressor.Qubits(), compressor.Levels())

	manifest.InputFiles, err = writer.WriteInput(img)
	if err != nil {
		return err
	}

	startTime := time.Now()
	for _, n2 := range compressor.Levels() {
		res, err := compressor.ProcessLevel(ctx, img, n2)
		if err != nil {
			if _, werr := writer.WriteManifest(manifest); werr != nil {
				log.Printf("Warning: Failed to write manifest: %v", werr)
			}
			return err
		}
		files, err := writer.WriteLevel(res, img.Rows, img.Cols)
		if err != nil {
			return err
		}
		manifest.AddLevel(res, files)

		fmt.Printf("\nLevel n2=%d (%d shots per patch):\n", res.Level, res.Shots)
		fmt.Printf("Mean Absolute Error (MAE): %.3f\n", res.Metrics.MAE)
		fmt.Printf("Root Mean Square Error (RMSE): %.3f\n", res.Metrics.RMSE)
		fmt.Printf("Peak Signal to Noise Ratio (PSNR): %.2f dB\n", res.Metrics.PSNR)
		fmt.Printf("Structural Similarity Index (SSIM): %.4f\n", res.Metrics.SSIM)
		fmt.Printf("Entropy Difference: %.3f\n", res.Metrics.EntropyDiff)
		fmt.Printf("Mutual Information: %.3f\n", res.Metrics.MI)
	}

	path, err := writer.WriteManifest(manifest)
	if err != nil {
		return err
	}
	fmt.Printf("\nCompression completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Artifacts saved to: %s\n", writer.Dir())
	fmt.Printf("Manifest: %s\n", path)
	return nil
}
