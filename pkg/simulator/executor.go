// Package simulator runs compression circuits and returns measurement counts.
//
// The Executor interface is the only thing the pipeline depends on; any
// backend able to prepare an arbitrary amplitude state, apply Hadamard and
// QFT blocks on a sub-register and sample measurements can implement it.
// StateVector is the in-process reference backend.
package simulator

import (
	"context"
	"errors"

	"qimagecompress/internal/models"
	"qimagecompress/pkg/circuit"
)

// ErrShots is returned for a non-positive shot count.
var ErrShots = errors.New("shot count must be positive")

// Executor runs a circuit shots times and returns the observed outcomes.
// The returned counts use n2-character bitstring keys and never total more
// than shots.
type Executor interface {
	Execute(ctx context.Context, spec *circuit.Spec, shots int) (models.Counts, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, spec *circuit.Spec, shots int) (models.Counts, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, spec *circuit.Spec, shots int) (models.Counts, error) {
	return f(ctx, spec, shots)
}

// Factory hands out the executor owned by one patch simulation of one
// truncation level, so concurrent patches never share simulator state.
type Factory func(level, patch int) Executor

// Shared returns a Factory that hands the same executor to every patch. The
// executor must then be safe for concurrent use.
func Shared(e Executor) Factory {
	return func(int, int) Executor { return e }
}
