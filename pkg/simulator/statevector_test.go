package simulator

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"qimagecompress/internal/models"
	"qimagecompress/pkg/circuit"
)

const tolerance = 1e-9

func uniformState(n0 int) []float64 {
	s := make([]float64, 1<<n0)
	for i := range s {
		s[i] = 1 / math.Sqrt(float64(len(s)))
	}
	return s
}

// rampState is a non-trivial normalised real state
func rampState(n0 int) []float64 {
	s := make([]float64, 1<<n0)
	var norm float64
	for i := range s {
		s[i] = math.Sqrt(float64(i%7 + 1))
		norm += s[i] * s[i]
	}
	for i := range s {
		s[i] /= math.Sqrt(norm)
	}
	return s
}

func testRegister(n int) *Register {
	r := NewRegister(n)
	for i := range r.Amplitudes {
		r.Amplitudes[i] = complex(float64(i%5)-1.5, float64(i%3)*0.5)
	}
	return r
}

// directQFT computes the QFT of qubits [start, start+width) by its definition
func directQFT(amps []complex128, start, width int, inverse bool) []complex128 {
	size := 1 << width
	mask := (size - 1) << start
	sign := 1.0
	if inverse {
		sign = -1
	}
	out := make([]complex128, len(amps))
	for i := range amps {
		base := i &^ mask
		j := (i & mask) >> start
		for k := 0; k < size; k++ {
			phase := sign * 2 * math.Pi * float64(j*k) / float64(size)
			out[base|k<<start] += amps[i] * cmplx.Exp(complex(0, phase)) / complex(math.Sqrt(float64(size)), 0)
		}
	}
	return out
}

func assertAmplitudes(t *testing.T, got, want []complex128) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d amplitudes, got %d", len(want), len(got))
	}
	for i := range want {
		if cmplx.Abs(got[i]-want[i]) > tolerance {
			t.Fatalf("amplitude %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestQFTMatchesDefinition(t *testing.T) {
	testCases := []struct {
		n, start, width int
		inverse         bool
	}{
		{3, 0, 3, false},
		{3, 0, 3, true},
		{4, 1, 2, false},
		{5, 0, 4, true},
		{5, 2, 3, false},
	}

	for _, tc := range testCases {
		r := testRegister(tc.n)
		want := directQFT(r.Amplitudes, tc.start, tc.width, tc.inverse)
		if err := r.Apply(circuit.Op{Kind: circuit.OpQFT, Start: tc.start, Width: tc.width, Inverse: tc.inverse}); err != nil {
			t.Fatal(err)
		}
		assertAmplitudes(t, r.Amplitudes, want)
	}
}

// TestQFTDecomposition replays the gate-level expansion and compares it to
// the FFT-based QFT
func TestQFTDecomposition(t *testing.T) {
	for _, inverse := range []bool{false, true} {
		viaFFT := testRegister(5)
		viaGates := testRegister(5)

		if err := viaFFT.Apply(circuit.Op{Kind: circuit.OpQFT, Start: 1, Width: 4, Inverse: inverse}); err != nil {
			t.Fatal(err)
		}
		for _, g := range circuit.QFTGates(1, 4, inverse) {
			if err := viaGates.Apply(g); err != nil {
				t.Fatal(err)
			}
		}
		assertAmplitudes(t, viaGates.Amplitudes, viaFFT.Amplitudes)
	}
}

func TestQFTRoundTrip(t *testing.T) {
	r := testRegister(4)
	orig := append([]complex128(nil), r.Amplitudes...)
	r.Apply(circuit.Op{Kind: circuit.OpQFT, Start: 0, Width: 4})
	r.Apply(circuit.Op{Kind: circuit.OpQFT, Start: 0, Width: 4, Inverse: true})
	assertAmplitudes(t, r.Amplitudes, orig)
}

func TestSpecDecompositionAgrees(t *testing.T) {
	spec, err := circuit.Build(rampState(6), 6, 4)
	if err != nil {
		t.Fatal(err)
	}

	viaSpec, err := Evolve(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	viaGates := NewRegister(6)
	for _, op := range spec.Decompose() {
		if err := viaGates.Apply(op); err != nil {
			t.Fatal(err)
		}
	}
	assertAmplitudes(t, viaGates.Amplitudes, viaSpec.Amplitudes)
}

func TestHadamardAndSwap(t *testing.T) {
	r := NewRegister(2)
	r.Apply(circuit.Op{Kind: circuit.OpH, Qubit: 0})
	want := []complex128{complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0), 0, 0}
	assertAmplitudes(t, r.Amplitudes, want)

	r.Apply(circuit.Op{Kind: circuit.OpSwap, Qubit: 0, Other: 1})
	want = []complex128{complex(1/math.Sqrt2, 0), 0, complex(1/math.Sqrt2, 0), 0}
	assertAmplitudes(t, r.Amplitudes, want)

	if err := r.Apply(circuit.Op{Kind: circuit.OpH, Qubit: 2}); err == nil {
		t.Error("expected error for out-of-range qubit")
	}
}

func TestMarginal(t *testing.T) {
	// 3 qubits, measure qubit 2 into clbit 0 and qubit 0 into clbit 1
	probs := []float64{0.1, 0.2, 0, 0, 0.3, 0, 0, 0.4}
	got := Marginal(probs, []int{2, 0}, 2)
	// index 0 (q0=0,q2=0): 0.1; 1 (q2=1,q0=0): 0.3; 2 (q0=1,q2=0): 0.2; 3 (q0=1,q2=1): 0.4
	want := []float64{0.1, 0.3, 0.2, 0.4}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tolerance {
			t.Errorf("outcome %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

// TestUniformPatch covers the constant-image scenario: a uniform state
// truncated from 6 to 4 qubits measures uniformly
func TestUniformPatch(t *testing.T) {
	for _, opts := range [][]circuit.Option{nil, {circuit.WithoutMixing()}} {
		spec, err := circuit.Build(uniformState(6), 6, 4, opts...)
		if err != nil {
			t.Fatal(err)
		}
		probs, err := Probabilities(context.Background(), spec)
		if err != nil {
			t.Fatal(err)
		}
		if len(probs) != 16 {
			t.Fatalf("expected 16 outcomes, got %d", len(probs))
		}
		for i, p := range probs {
			if math.Abs(p-1.0/16) > tolerance {
				t.Errorf("mixing=%v outcome %d: expected 1/16, got %f", spec.Mixing(), i, p)
			}
		}
	}
}

func TestProbabilityConservation(t *testing.T) {
	for _, n2 := range []int{2, 4, 6} {
		spec, err := circuit.Build(rampState(8), 8, n2)
		if err != nil {
			t.Fatal(err)
		}
		probs, err := Probabilities(context.Background(), spec)
		if err != nil {
			t.Fatal(err)
		}
		var sum float64
		for _, p := range probs {
			sum += p
		}
		if math.Abs(sum-1) > tolerance {
			t.Errorf("n2=%d: probabilities sum to %f", n2, sum)
		}
	}
}

func TestExecuteSampling(t *testing.T) {
	spec, err := circuit.Build(uniformState(6), 6, 4)
	if err != nil {
		t.Fatal(err)
	}

	shots := 4096
	counts, err := NewStateVector(WithSeed(7)).Execute(context.Background(), spec, shots)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if counts.Total() != shots {
		t.Errorf("expected %d total counts, got %d", shots, counts.Total())
	}
	for key, n := range counts {
		if len(key) != 4 {
			t.Errorf("key %q should have 4 bits", key)
		}
		// expected 256 per outcome, sigma ~15.5
		if n < 156 || n > 356 {
			t.Errorf("outcome %s: count %d far from uniform 256", key, n)
		}
	}

	again, _ := NewStateVector(WithSeed(7)).Execute(context.Background(), spec, shots)
	for key, n := range counts {
		if again[key] != n {
			t.Fatalf("same seed produced different counts for %s: %d vs %d", key, n, again[key])
		}
	}
}

func TestExecuteExact(t *testing.T) {
	spec, err := circuit.Build(uniformState(6), 6, 4)
	if err != nil {
		t.Fatal(err)
	}
	counts, err := NewStateVector(WithExact()).Execute(context.Background(), spec, 4096)
	if err != nil {
		t.Fatal(err)
	}
	want := models.Counts{}
	for i := 0; i < 16; i++ {
		want[models.Bitstring(i, 4)] = 256
	}
	for key, n := range want {
		if counts[key] != n {
			t.Errorf("outcome %s: expected %d, got %d", key, n, counts[key])
		}
	}
}

func TestExpectedCounts(t *testing.T) {
	hist := ExpectedCounts([]float64{0.5, 0.25, 0.125, 0.125}, 10)
	total := 0
	for _, n := range hist {
		total += n
	}
	if total != 10 {
		t.Errorf("expected counts to sum to 10, got %d (%v)", total, hist)
	}
	if hist[0] != 5 {
		t.Errorf("expected 5 for p=0.5, got %d", hist[0])
	}

	thirds := ExpectedCounts([]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, 100)
	if thirds[0]+thirds[1]+thirds[2] != 100 {
		t.Errorf("expected thirds to sum to 100, got %v", thirds)
	}
}

func TestExecuteErrors(t *testing.T) {
	spec, err := circuit.Build(uniformState(4), 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	sv := NewStateVector()

	if _, err := sv.Execute(context.Background(), spec, 0); !errors.Is(err, ErrShots) {
		t.Errorf("expected ErrShots, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sv.Execute(ctx, spec, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFactoryStreams(t *testing.T) {
	spec, err := circuit.Build(rampState(6), 6, 4)
	if err != nil {
		t.Fatal(err)
	}
	f := NewStateVector(WithSeed(3)).Factory()

	a, _ := f(4, 0).Execute(context.Background(), spec, 2000)
	b, _ := f(4, 0).Execute(context.Background(), spec, 2000)
	c, _ := f(4, 1).Execute(context.Background(), spec, 2000)

	same := true
	for key, n := range a {
		if b[key] != n {
			t.Fatalf("same level and patch produced different counts")
		}
		if c[key] != n {
			same = false
		}
	}
	if same && len(a) == len(c) {
		t.Error("different patches should draw from different streams")
	}
}

func TestSharedFactory(t *testing.T) {
	calls := 0
	e := Func(func(ctx context.Context, spec *circuit.Spec, shots int) (models.Counts, error) {
		calls++
		return models.Counts{"0": shots}, nil
	})
	f := Shared(e)
	f(2, 0).Execute(context.Background(), nil, 1)
	f(2, 5).Execute(context.Background(), nil, 1)
	if calls != 2 {
		t.Errorf("expected 2 calls through the shared executor, got %d", calls)
	}
}
