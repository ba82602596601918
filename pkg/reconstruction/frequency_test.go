package reconstruction

import (
	"errors"
	"math"
	"testing"

	"qimagecompress/internal/models"
)

func TestReconstruct(t *testing.T) {
	counts := models.Counts{"00": 2, "10": 6}

	vec, err := Reconstruct(counts, 2, 1)
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	expected := []float64{0.25, 0, 0.75, 0}
	if len(vec) != len(expected) {
		t.Fatalf("expected length %d, got %d", len(expected), len(vec))
	}
	for i := range expected {
		if vec[i] != expected[i] {
			t.Errorf("entry %d: expected %f, got %f", i, expected[i], vec[i])
		}
	}
}

func TestReconstructNorm(t *testing.T) {
	counts := models.Counts{"0000": 1, "1111": 3}

	vec, err := Reconstruct(counts, 4, 200)
	if err != nil {
		t.Fatal(err)
	}
	if vec[0] != 50 || vec[15] != 150 {
		t.Errorf("expected entries 50 and 150, got %f and %f", vec[0], vec[15])
	}
}

// TestReconstructConservation checks that the unscaled vector sums to one
func TestReconstructConservation(t *testing.T) {
	counts := models.Counts{}
	shots := 0
	for i := 0; i < 64; i += 3 {
		counts[models.Bitstring(i, 6)] = i + 1
		shots += i + 1
	}

	vec, err := Reconstruct(counts, 6, 1)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, p := range vec {
		sum += p
	}
	if math.Abs(sum-1) > 1/float64(shots) {
		t.Errorf("probabilities sum to %f, expected 1 within 1/%d", sum, shots)
	}
}

func TestReconstructDeterministic(t *testing.T) {
	counts := models.Counts{}
	for i := 0; i < 256; i++ {
		counts[models.Bitstring(i, 8)] = (i*37)%101 + 1
	}

	a, err := Reconstruct(counts, 8, 3.5)
	if err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 5; run++ {
		b, err := Reconstruct(counts, 8, 3.5)
		if err != nil {
			t.Fatal(err)
		}
		for i := range a {
			if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
				t.Fatalf("run %d entry %d: %v != %v", run, i, a[i], b[i])
			}
		}
	}
}

func TestReconstructEmpty(t *testing.T) {
	for _, counts := range []models.Counts{nil, {}, {"00": 0, "11": 0}} {
		vec, err := Reconstruct(counts, 2, 1)
		if !errors.Is(err, ErrEmptyCounts) {
			t.Errorf("expected ErrEmptyCounts for %v, got %v", counts, err)
		}
		if vec != nil {
			t.Errorf("expected no vector, got %v", vec)
		}
	}
}

func TestReconstructMalformed(t *testing.T) {
	testCases := []models.Counts{
		{"000": 1},
		{"0a": 1},
		{"01": -1},
	}

	for _, counts := range testCases {
		if _, err := Reconstruct(counts, 2, 1); !errors.Is(err, ErrMalformedCounts) {
			t.Errorf("expected ErrMalformedCounts for %v, got %v", counts, err)
		}
	}
	if _, err := Reconstruct(models.Counts{"0": 1}, 0, 1); !errors.Is(err, ErrMalformedCounts) {
		t.Errorf("expected ErrMalformedCounts for zero width, got %v", err)
	}
}
