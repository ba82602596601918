package simulator

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"qimagecompress/internal/models"
	"qimagecompress/pkg/circuit"
)

// cancelCheckInterval is how many shots are drawn between context checks.
const cancelCheckInterval = 4096

// StateVector is the in-process reference executor: it evolves the exact
// state vector and samples the measured marginal distribution.
type StateVector struct {
	seed  uint64
	exact bool
}

// Option configures a StateVector.
type Option func(*StateVector)

// WithSeed fixes the sampling seed.
func WithSeed(seed uint64) Option {
	return func(sv *StateVector) { sv.seed = seed }
}

// WithExact makes the executor return the expected counts instead of
// sampling, which turns every run into a deterministic one.
func WithExact() Option {
	return func(sv *StateVector) { sv.exact = true }
}

// NewStateVector creates a reference executor.
func NewStateVector(opts ...Option) *StateVector {
	sv := &StateVector{seed: 1}
	for _, opt := range opts {
		opt(sv)
	}
	return sv
}

// Factory returns a Factory whose executors draw from independent streams
// derived from the seed, the truncation level and the patch index.
func (sv *StateVector) Factory() Factory {
	return func(level, patch int) Executor {
		return &StateVector{
			seed:  mix(mix(sv.seed, uint64(level)), uint64(patch)),
			exact: sv.exact,
		}
	}
}

// Execute runs spec and returns shots measurement outcomes.
func (sv *StateVector) Execute(ctx context.Context, spec *circuit.Spec, shots int) (models.Counts, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrShots, shots)
	}

	probs, err := Probabilities(ctx, spec)
	if err != nil {
		return nil, err
	}

	var hist []int
	if sv.exact {
		hist = ExpectedCounts(probs, shots)
	} else {
		hist, err = sample(ctx, probs, shots, rand.NewSource(sv.seed))
		if err != nil {
			return nil, err
		}
	}

	counts := make(models.Counts)
	for outcome, n := range hist {
		if n > 0 {
			counts[models.Bitstring(outcome, spec.Truncation())] = n
		}
	}
	return counts, nil
}

func sample(ctx context.Context, probs []float64, shots int, src rand.Source) ([]int, error) {
	dist := distuv.NewCategorical(probs, src)
	hist := make([]int, len(probs))
	for i := 0; i < shots; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hist[int(dist.Rand())]++
	}
	return hist, nil
}

// ExpectedCounts distributes shots over outcomes in proportion to probs
// using largest-remainder rounding, so the result always sums to shots.
func ExpectedCounts(probs []float64, shots int) []int {
	var total float64
	for _, p := range probs {
		total += p
	}

	hist := make([]int, len(probs))
	if total <= 0 {
		return hist
	}
	rem := make([]float64, len(probs))
	assigned := 0
	for i, p := range probs {
		exact := p / total * float64(shots)
		hist[i] = int(math.Floor(exact))
		rem[i] = exact - float64(hist[i])
		assigned += hist[i]
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for i := 0; assigned < shots && i < len(order); i++ {
		hist[order[i]]++
		assigned++
	}
	return hist
}

// mix is the splitmix64 finaliser applied to a combined seed.
func mix(seed, v uint64) uint64 {
	z := seed + 0x9e3779b97f4a7c15*(v+1)
	z = (z ^ z>>30) * 0xbf58476d1ce4e5b9
	z = (z ^ z>>27) * 0x94d049bb133111eb
	return z ^ z>>31
}
