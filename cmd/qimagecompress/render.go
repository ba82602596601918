package main

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"qimagecompress/pkg/imageio"
	"qimagecompress/pkg/output"
)

type renderOptions struct {
	level   int
	out     string
	upscale bool
}

func newRenderCommand() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render RUN_DIR",
		Short: "Re-render the PNG of a saved level from its stored matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.level, "level", 0, "Truncation level n2 to render")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output PNG (default: RUN_DIR/images/output<n2>q-rendered.png)")
	cmd.Flags().BoolVar(&opts.upscale, "upscale", false, "Enlarge to the input size")
	cmd.MarkFlagRequired("level")
	return cmd
}

func render(dir string, opts *renderOptions, stdout io.Writer) error {
	manifest, err := output.LoadManifest(filepath.Join(dir, output.ManifestFile))
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	entry, ok := manifest.Level(opts.level)
	if !ok {
		return fmt.Errorf("run %s has no level %d", manifest.RunID, opts.level)
	}

	m, err := output.ReadMatrix(dir, entry.Files, manifest.Params.BitDepth)
	if err != nil {
		return fmt.Errorf("level %d: %w", opts.level, err)
	}
	img := imageio.ToImage(m, manifest.Params.BitDepth)
	if opts.upscale {
		img = imageio.Upscale(img, manifest.Params.Rows, manifest.Params.Cols)
	}

	out := opts.out
	if out == "" {
		out = filepath.Join(dir, "images", output.LevelName(opts.level)+"-rendered.png")
	}
	file, err := os.Create(out)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", out, err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	b := img.Bounds()
	fmt.Fprintf(stdout, "Level n2=%d of run %s: %dx%d written to %s\n", opts.level, manifest.RunID, b.Dx(), b.Dy(), out)
	fmt.Fprintf(stdout, "Recorded MAE %.3f, PSNR %.2f dB, SSIM %.4f\n", entry.Metrics.MAE, entry.Metrics.PSNR, entry.Metrics.SSIM)
	return nil
}
