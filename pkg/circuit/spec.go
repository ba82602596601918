// Package circuit builds the abstract description of the compression circuit
// run for one patch at one truncation level: amplitude state preparation, a
// forward QFT over the whole register, an inverse QFT over a prefix of it,
// and the measurement of the qubits that survive the discard rule.
//
// Qubit q corresponds to bit q of a basis-state index (little-endian), and
// classical bit k of a measurement outcome comes from the k-th surviving
// qubit in ascending order.
package circuit

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var (
	// ErrTruncation is returned for a truncation level the circuit cannot realise.
	ErrTruncation = errors.New("invalid truncation level")

	// ErrStateLength is returned when the amplitude vector does not fill the register.
	ErrStateLength = errors.New("amplitude state length does not match register size")
)

// OpKind identifies a circuit operation.
type OpKind int

const (
	// OpInitialize prepares the register in an arbitrary amplitude state.
	OpInitialize OpKind = iota
	// OpH is a Hadamard (balanced superposition) gate.
	OpH
	// OpQFT is a quantum Fourier transform over a contiguous sub-register.
	OpQFT
	// OpBarrier is an ordering fence with no effect on the state.
	OpBarrier
	// OpPhase is a controlled phase rotation.
	OpPhase
	// OpSwap exchanges two qubits.
	OpSwap
	// OpMeasure measures a qubit into a classical bit.
	OpMeasure
)

func (k OpKind) String() string {
	switch k {
	case OpInitialize:
		return "initialize"
	case OpH:
		return "h"
	case OpQFT:
		return "qft"
	case OpBarrier:
		return "barrier"
	case OpPhase:
		return "cp"
	case OpSwap:
		return "swap"
	case OpMeasure:
		return "measure"
	default:
		return "unknown"
	}
}

// Op is a single circuit operation. Only the fields relevant to Kind are set.
type Op struct {
	Kind OpKind

	// Qubit is the target of H and Measure, and the first qubit of Phase and Swap
	Qubit int

	// Other is the second qubit of Phase and Swap
	Other int

	// Start and Width delimit the sub-register of a QFT
	Start, Width int

	// Inverse selects the inverse QFT
	Inverse bool

	// Angle is the rotation of a Phase gate in radians
	Angle float64

	// Clbit is the classical bit written by Measure
	Clbit int

	// Amplitudes is the state loaded by Initialize
	Amplitudes []float64
}

func (o Op) clone() Op {
	if o.Amplitudes != nil {
		o.Amplitudes = append([]float64(nil), o.Amplitudes...)
	}
	return o
}

// Spec is an immutable description of one compression circuit.
type Spec struct {
	n0, n2    int
	mixing    bool
	state     []float64
	discarded []int
	survivors []int
	ops       []Op
}

type options struct {
	mixing bool
}

// Option configures Build.
type Option func(*options)

// WithoutMixing drops the Hadamard layers applied before the forward QFT and
// before each measurement. Mixing is on by default.
func WithoutMixing() Option {
	return func(o *options) { o.mixing = false }
}

// ValidateLevel checks that n2 is a usable truncation of an n0-qubit register:
// even, at least 2, strictly below n0, and leaving an even number of qubits to
// remove so the two transform stages each drop the same count.
func ValidateLevel(n0, n2 int) error {
	switch {
	case n2 < 2:
		return fmt.Errorf("%w: n2=%d is below 2", ErrTruncation, n2)
	case n2%2 != 0:
		return fmt.Errorf("%w: n2=%d is odd", ErrTruncation, n2)
	case n2 >= n0:
		return fmt.Errorf("%w: n2=%d is not below register size n0=%d", ErrTruncation, n2, n0)
	case (n0-n2)%2 != 0:
		return fmt.Errorf("%w: n0-n2=%d is odd", ErrTruncation, n0-n2)
	}
	return nil
}

// NTilde is the number of qubits removed at each transform stage.
func NTilde(n0, n2 int) int {
	return (n0 - n2) / 2
}

// Retained is the number of qubits the inverse QFT acts on (n1).
func Retained(n0, n2 int) int {
	return n0 - NTilde(n0, n2)
}

// Discarded returns the qubits cut from the middle of the retained prefix:
// the closed range [n0/2 - ntilde, n0/2 - 1].
func Discarded(n0, n2 int) []int {
	nt := NTilde(n0, n2)
	return lo.RangeFrom(n0/2-nt, nt)
}

// Survivors returns the measured qubits in ascending order. Survivors[k]
// is written to classical bit k.
func Survivors(n0, n2 int) []int {
	discarded := Discarded(n0, n2)
	return lo.Filter(lo.Range(Retained(n0, n2)), func(q int, _ int) bool {
		return !lo.Contains(discarded, q)
	})
}

// Unmeasured returns every qubit that does not reach a classical bit: the
// discarded middle qubits plus the high qubits outside the inverse QFT.
func Unmeasured(n0, n2 int) []int {
	return append(Discarded(n0, n2), lo.RangeFrom(Retained(n0, n2), n0-Retained(n0, n2))...)
}

// Build describes the compression circuit for state on an n0-qubit register
// truncated to n2 measured qubits. It has no side effects and always
// produces the same Spec for the same arguments.
func Build(state []float64, n0, n2 int, opts ...Option) (*Spec, error) {
	if err := ValidateLevel(n0, n2); err != nil {
		return nil, err
	}
	if len(state) != 1<<n0 {
		return nil, fmt.Errorf("%w: got %d amplitudes for %d qubits", ErrStateLength, len(state), n0)
	}

	o := options{mixing: true}
	for _, opt := range opts {
		opt(&o)
	}

	n1 := Retained(n0, n2)
	s := &Spec{
		n0:        n0,
		n2:        n2,
		mixing:    o.mixing,
		state:     append([]float64(nil), state...),
		discarded: Discarded(n0, n2),
		survivors: Survivors(n0, n2),
	}

	s.ops = append(s.ops, Op{Kind: OpInitialize, Amplitudes: s.state})
	if s.mixing {
		for q := 0; q < n0; q++ {
			s.ops = append(s.ops, Op{Kind: OpH, Qubit: q})
		}
	}
	s.ops = append(s.ops,
		Op{Kind: OpQFT, Start: 0, Width: n0},
		Op{Kind: OpBarrier},
		Op{Kind: OpQFT, Start: 0, Width: n1, Inverse: true},
	)
	for clbit, q := range s.survivors {
		if s.mixing {
			s.ops = append(s.ops, Op{Kind: OpH, Qubit: q})
		}
		s.ops = append(s.ops, Op{Kind: OpMeasure, Qubit: q, Clbit: clbit})
	}
	return s, nil
}

// Qubits returns the register size n0.
func (s *Spec) Qubits() int { return s.n0 }

// Truncation returns the number of measured qubits n2.
func (s *Spec) Truncation() int { return s.n2 }

// Mixing reports whether the Hadamard layers are part of the circuit.
func (s *Spec) Mixing() bool { return s.mixing }

// State returns a copy of the prepared amplitude state.
func (s *Spec) State() []float64 {
	return append([]float64(nil), s.state...)
}

// Discarded returns a copy of the discarded qubit indices.
func (s *Spec) Discarded() []int {
	return append([]int(nil), s.discarded...)
}

// Survivors returns a copy of the measured qubits, indexed by classical bit.
func (s *Spec) Survivors() []int {
	return append([]int(nil), s.survivors...)
}

// Clbit returns the classical bit that qubit q is measured into.
func (s *Spec) Clbit(q int) (int, bool) {
	return lo.IndexOf(s.survivors, q), lo.Contains(s.survivors, q)
}

// Ops returns a deep copy of the operation list.
func (s *Spec) Ops() []Op {
	return lo.Map(s.ops, func(o Op, _ int) Op { return o.clone() })
}

// Decompose returns the operation list with every QFT expanded into
// Hadamard, controlled-phase and swap gates. Barriers are dropped.
func (s *Spec) Decompose() []Op {
	var out []Op
	for _, o := range s.ops {
		switch o.Kind {
		case OpQFT:
			out = append(out, QFTGates(o.Start, o.Width, o.Inverse)...)
		case OpBarrier:
		default:
			out = append(out, o.clone())
		}
	}
	return out
}
