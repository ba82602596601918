package simulator

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"qimagecompress/pkg/circuit"
)

// Register is a dense complex state vector over n qubits. Qubit q is bit q
// of the basis-state index.
type Register struct {
	Amplitudes []complex128
	NumQubits  int
}

// NewRegister returns an n-qubit register in |0...0>.
func NewRegister(n int) *Register {
	amps := make([]complex128, 1<<n)
	amps[0] = 1
	return &Register{Amplitudes: amps, NumQubits: n}
}

// Probabilities returns |amplitude|^2 for every basis state.
func (r *Register) Probabilities() []float64 {
	p := make([]float64, len(r.Amplitudes))
	for i, a := range r.Amplitudes {
		p[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return p
}

// Apply evolves the register by one operation. Measurements and barriers
// leave the state untouched; measurement is handled by sampling the final
// state.
func (r *Register) Apply(op circuit.Op) error {
	switch op.Kind {
	case circuit.OpInitialize:
		if len(op.Amplitudes) != len(r.Amplitudes) {
			return fmt.Errorf("initialize: %d amplitudes for %d qubits", len(op.Amplitudes), r.NumQubits)
		}
		for i, a := range op.Amplitudes {
			r.Amplitudes[i] = complex(a, 0)
		}
	case circuit.OpH:
		if err := r.checkQubit(op.Qubit); err != nil {
			return err
		}
		r.applyH(op.Qubit)
	case circuit.OpPhase:
		if err := r.checkQubit(op.Qubit, op.Other); err != nil {
			return err
		}
		r.applyPhase(op.Qubit, op.Other, op.Angle)
	case circuit.OpSwap:
		if err := r.checkQubit(op.Qubit, op.Other); err != nil {
			return err
		}
		r.applySwap(op.Qubit, op.Other)
	case circuit.OpQFT:
		if op.Width <= 0 || op.Start < 0 || op.Start+op.Width > r.NumQubits {
			return fmt.Errorf("qft: sub-register [%d,%d) outside %d qubits", op.Start, op.Start+op.Width, r.NumQubits)
		}
		r.applyQFT(op.Start, op.Width, op.Inverse)
	case circuit.OpBarrier, circuit.OpMeasure:
	default:
		return fmt.Errorf("unsupported operation %v", op.Kind)
	}
	return nil
}

func (r *Register) checkQubit(qs ...int) error {
	for _, q := range qs {
		if q < 0 || q >= r.NumQubits {
			return fmt.Errorf("qubit %d outside %d-qubit register", q, r.NumQubits)
		}
	}
	return nil
}

func (r *Register) applyH(q int) {
	h := complex(1/math.Sqrt2, 0)
	bit := 1 << q
	for i := range r.Amplitudes {
		if i&bit == 0 {
			j := i | bit
			a, b := r.Amplitudes[i], r.Amplitudes[j]
			r.Amplitudes[i] = h * (a + b)
			r.Amplitudes[j] = h * (a - b)
		}
	}
}

func (r *Register) applyPhase(q1, q2 int, angle float64) {
	phase := complex(math.Cos(angle), math.Sin(angle))
	mask := 1<<q1 | 1<<q2
	for i := range r.Amplitudes {
		if i&mask == mask {
			r.Amplitudes[i] *= phase
		}
	}
}

func (r *Register) applySwap(q1, q2 int) {
	bit1, bit2 := 1<<q1, 1<<q2
	for i := range r.Amplitudes {
		if i&bit1 != 0 && i&bit2 == 0 {
			j := i&^bit1 | bit2
			r.Amplitudes[i], r.Amplitudes[j] = r.Amplitudes[j], r.Amplitudes[i]
		}
	}
}

// applyQFT runs the (inverse) QFT on qubits [start, start+width) as a
// normalised DFT over every block of amplitudes sharing the other bits.
// The forward QFT uses the positive exponent, which is gonum's unnormalised
// Sequence transform; the inverse is Coefficients.
func (r *Register) applyQFT(start, width int, inverse bool) {
	size := 1 << width
	mask := (size - 1) << start
	fft := fourier.NewCmplxFFT(size)
	in := make([]complex128, size)
	out := make([]complex128, size)
	scale := complex(1/math.Sqrt(float64(size)), 0)

	for base := range r.Amplitudes {
		if base&mask != 0 {
			continue
		}
		for j := range in {
			in[j] = r.Amplitudes[base|j<<start]
		}
		if inverse {
			fft.Coefficients(out, in)
		} else {
			fft.Sequence(out, in)
		}
		for k, v := range out {
			r.Amplitudes[base|k<<start] = v * scale
		}
	}
}

// Evolve runs every unitary operation of spec on a fresh register and
// returns the final state.
func Evolve(ctx context.Context, spec *circuit.Spec) (*Register, error) {
	r := NewRegister(spec.Qubits())
	for i, op := range spec.Ops() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.Apply(op); err != nil {
			return nil, fmt.Errorf("op %d (%v): %w", i, op.Kind, err)
		}
	}
	return r, nil
}

// Probabilities returns the exact distribution of the measured outcomes of
// spec, indexed by the integer value of the classical register.
func Probabilities(ctx context.Context, spec *circuit.Spec) ([]float64, error) {
	r, err := Evolve(ctx, spec)
	if err != nil {
		return nil, err
	}
	return Marginal(r.Probabilities(), measurementMap(spec), spec.Truncation()), nil
}

// Marginal sums basis-state probabilities into the distribution over
// classical outcomes. qubits[k] is the qubit measured into classical bit k.
func Marginal(probs []float64, qubits []int, clbits int) []float64 {
	out := make([]float64, 1<<clbits)
	for i, p := range probs {
		outcome := 0
		for k, q := range qubits {
			if i>>q&1 == 1 {
				outcome |= 1 << k
			}
		}
		out[outcome] += p
	}
	return out
}

func measurementMap(spec *circuit.Spec) []int {
	qubits := make([]int, spec.Truncation())
	for _, op := range spec.Ops() {
		if op.Kind == circuit.OpMeasure {
			qubits[op.Clbit] = op.Qubit
		}
	}
	return qubits
}
