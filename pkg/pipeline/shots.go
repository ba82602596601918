package pipeline

import (
	"fmt"
	"math"
	"strings"
)

// ShotPolicy selects how many measurements each patch circuit gets at a
// truncation level.
type ShotPolicy int

const (
	// ShotsReasonable uses 2^(n2+b) shots
	ShotsReasonable ShotPolicy = iota
	// ShotsIdeal uses 2^(n2+2b) shots
	ShotsIdeal
	// ShotsStandard uses 2^(n2+b) * floor(sqrt(2^b)) shots
	ShotsStandard
	// ShotsNoisy uses 2^n2 * 16 shots
	ShotsNoisy
	// ShotsFixed uses Params.Shots at every level
	ShotsFixed
)

var shotPolicyNames = map[ShotPolicy]string{
	ShotsReasonable: "reasonable",
	ShotsIdeal:      "ideal",
	ShotsStandard:   "standard",
	ShotsNoisy:      "noisy",
	ShotsFixed:      "fixed",
}

func (p ShotPolicy) String() string {
	if name, ok := shotPolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ShotPolicy(%d)", int(p))
}

// ParseShotPolicy maps a policy name to its ShotPolicy.
func ParseShotPolicy(name string) (ShotPolicy, error) {
	for p, n := range shotPolicyNames {
		if strings.EqualFold(name, n) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown shot policy %q", name)
}

// Shots returns the per-patch shot count at level n2 for bitDepth-bit
// images. fixed is only used by ShotsFixed.
func (p ShotPolicy) Shots(n2, bitDepth, fixed int) int {
	switch p {
	case ShotsIdeal:
		return 1 << (n2 + 2*bitDepth)
	case ShotsStandard:
		return (1 << (n2 + bitDepth)) * int(math.Sqrt(float64(int(1)<<bitDepth)))
	case ShotsNoisy:
		return (1 << n2) * 16
	case ShotsFixed:
		return fixed
	default:
		return 1 << (n2 + bitDepth)
	}
}
