// Package reconstruction turns raw measurement counts into the probability
// vector of a truncated register.
package reconstruction

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"qimagecompress/internal/models"
)

var (
	// ErrEmptyCounts is returned when no measurement was observed.
	ErrEmptyCounts = errors.New("no measurement data")

	// ErrMalformedCounts is returned for keys that are not n2-bit strings or
	// for negative occurrence counts.
	ErrMalformedCounts = errors.New("malformed measurement counts")
)

// Reconstruct estimates the outcome distribution of an n2-qubit register
// from counts and scales it by norm, the patch normalization constant.
//
// Entry i is the relative frequency of the bitstring of i, and zero for
// outcomes never observed. The vector is filled by index, never by map
// iteration, so equal counts always give bit-identical vectors.
func Reconstruct(counts models.Counts, n2 int, norm float64) (models.ProbabilityVector, error) {
	if n2 <= 0 {
		return nil, fmt.Errorf("%w: register width %d", ErrMalformedCounts, n2)
	}
	if err := Validate(counts, n2); err != nil {
		return nil, err
	}

	total := counts.Total()
	if total == 0 {
		return nil, ErrEmptyCounts
	}

	out := make(models.ProbabilityVector, 1<<n2)
	for i := range out {
		out[i] = float64(counts[models.Bitstring(i, n2)]) / float64(total)
	}
	floats.Scale(norm, out)
	return out, nil
}

// Validate checks that every key of counts is an n2-character binary string
// and every count is non-negative.
func Validate(counts models.Counts, n2 int) error {
	for key, n := range counts {
		if n < 0 {
			return fmt.Errorf("%w: negative count %d for %q", ErrMalformedCounts, n, key)
		}
		if len(key) != n2 {
			return fmt.Errorf("%w: key %q is not %d bits", ErrMalformedCounts, key, n2)
		}
		if _, err := models.ParseBitstring(key); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedCounts, err)
		}
	}
	return nil
}
