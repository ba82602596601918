package circuit

import (
	"math"

	"github.com/samber/lo"
)

// QFTGates expands a QFT over qubits [start, start+width) into gates. The
// forward transform maps |j> to 2^(-width/2) sum_k exp(2 pi i jk / 2^width) |k>
// with j and k read little-endian from the sub-register; the trailing swaps
// restore that bit order. The inverse is the reversed sequence with negated
// angles.
func QFTGates(start, width int, inverse bool) []Op {
	var gates []Op
	for j := width - 1; j >= 0; j-- {
		gates = append(gates, Op{Kind: OpH, Qubit: start + j})
		for k := j - 1; k >= 0; k-- {
			gates = append(gates, Op{
				Kind:  OpPhase,
				Qubit: start + j,
				Other: start + k,
				Angle: math.Pi / float64(int(1)<<(j-k)),
			})
		}
	}
	for i := 0; i < width/2; i++ {
		gates = append(gates, Op{Kind: OpSwap, Qubit: start + i, Other: start + width - 1 - i})
	}

	if !inverse {
		return gates
	}
	gates = lo.Reverse(gates)
	for i := range gates {
		gates[i].Angle = -gates[i].Angle
	}
	return gates
}
