package models

import (
	"fmt"
	"strconv"
)

// Counts maps measured bitstrings to their number of occurrences.
// Classical bit 0 is the rightmost character, as in OpenQASM result strings,
// so sorting keys lexicographically sorts outcomes by integer value.
type Counts map[string]int

// Total returns the sum of all occurrences.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Bitstring renders outcome as a width-character binary string, most
// significant classical bit first.
func Bitstring(outcome, width int) string {
	return fmt.Sprintf("%0*b", width, outcome)
}

// ParseBitstring returns the integer outcome encoded by key.
func ParseBitstring(key string) (int, error) {
	if key == "" {
		return 0, fmt.Errorf("empty bitstring")
	}
	v, err := strconv.ParseUint(key, 2, 62)
	if err != nil {
		return 0, fmt.Errorf("bitstring %q: %w", key, err)
	}
	return int(v), nil
}
