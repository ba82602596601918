package circuit

import (
	"fmt"
	"strconv"
	"strings"
)

// QASMBuilder builds OpenQASM 2.0 text.
type QASMBuilder struct {
	header       []string
	registers    []string
	gates        []string
	measurements []string
}

// NewQASMBuilder creates a builder with a quantum and a classical register.
func NewQASMBuilder(numQubits, numClassical int) *QASMBuilder {
	return &QASMBuilder{
		header: []string{"OPENQASM 2.0;", `include "qelib1.inc";`},
		registers: []string{
			fmt.Sprintf("qreg q[%d];", numQubits),
			fmt.Sprintf("creg c[%d];", numClassical),
		},
	}
}

// AddComment adds a comment line before the register declarations.
func (b *QASMBuilder) AddComment(text string) {
	b.header = append(b.header, "// "+text)
}

// AddGate adds a gate statement
func (b *QASMBuilder) AddGate(gate string) {
	b.gates = append(b.gates, gate)
}

// AddMeasurement adds a measurement statement
func (b *QASMBuilder) AddMeasurement(qubit, clbit int) {
	b.measurements = append(b.measurements, fmt.Sprintf("measure q[%d] -> c[%d];", qubit, clbit))
}

// Build renders the program.
func (b *QASMBuilder) Build() string {
	var sb strings.Builder
	for _, section := range [][]string{b.header, b.registers, b.gates, b.measurements} {
		for _, line := range section {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// QASM renders the decomposed circuit as OpenQASM 2.0. OpenQASM 2.0 has no
// state preparation statement, so the amplitudes are listed as comments and
// a consumer must load them before running the gates.
func (s *Spec) QASM() string {
	b := NewQASMBuilder(s.n0, s.n2)
	b.AddComment(fmt.Sprintf("compression circuit n0=%d n2=%d discarded=%v", s.n0, s.n2, s.discarded))
	b.AddComment("initialize q amplitudes (index: amplitude, qubit 0 = least significant bit)")
	for i, a := range s.state {
		b.AddComment(fmt.Sprintf("  %d: %s", i, strconv.FormatFloat(a, 'g', -1, 64)))
	}

	for _, o := range s.Decompose() {
		switch o.Kind {
		case OpH:
			b.AddGate(fmt.Sprintf("h q[%d];", o.Qubit))
		case OpPhase:
			b.AddGate(fmt.Sprintf("cu1(%s) q[%d],q[%d];", strconv.FormatFloat(o.Angle, 'g', -1, 64), o.Qubit, o.Other))
		case OpSwap:
			b.AddGate(fmt.Sprintf("swap q[%d],q[%d];", o.Qubit, o.Other))
		case OpMeasure:
			b.AddMeasurement(o.Qubit, o.Clbit)
		}
	}
	return b.Build()
}
