package main

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"qimagecompress/pkg/circuit"
	"qimagecompress/pkg/config"
)

func main() {
	root := &cobra.Command{
		Use:   "qimagecompress",
		Short: "Progressive image compression by simulated quantum Fourier truncation",
		Long: `qimagecompress splits a grayscale image into patches, amplitude-encodes each
patch in a qubit register, applies a QFT followed by a partial inverse QFT,
discards qubits and rebuilds the image from simulated measurements. Each
truncation level n2 trades fidelity for measurement cost.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newRenderCommand(), newInitConfigCommand(), newCircuitCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config PATH",
		Short: "Write a configuration file with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", args[0])
			return nil
		},
	}
}

func newCircuitCommand() *cobra.Command {
	var n0, n2 int
	var noMixing bool

	cmd := &cobra.Command{
		Use:   "circuit",
		Short: "Print the OpenQASM circuit of a uniform patch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if n0 <= 0 || n0 > 20 {
				return fmt.Errorf("n0 %d must be between 1 and 20", n0)
			}
			state := make([]float64, 1<<n0)
			for i := range state {
				state[i] = 1 / math.Sqrt(float64(len(state)))
			}

			var opts []circuit.Option
			if noMixing {
				opts = append(opts, circuit.WithoutMixing())
			}
			spec, err := circuit.Build(state, n0, n2, opts...)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), spec.QASM())
			return nil
		},
	}

	cmd.Flags().IntVar(&n0, "n0", 6, "Qubits of the full register")
	cmd.Flags().IntVar(&n2, "n2", 4, "Qubits kept after truncation")
	cmd.Flags().BoolVar(&noMixing, "no-mixing", false, "Omit the Hadamard mixing layers")
	return cmd
}
