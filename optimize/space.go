package optimize

import (
	"fmt"
	"math/rand"

	"github.com/rgould/quantrisk/strategies"
)

// Range is one searchable parameter dimension. Step > 0 makes the dimension
// enumerable for grid search; random sampling draws uniformly from [Min, Max].
type Range struct {
	Key  string  `yaml:"key" json:"key"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Space is the full parameter search space.
type Space []Range

// Size returns the number of grid combinations, or 0 when any dimension has
// no step and the grid is unbounded.
func (s Space) Size() int {
	total := 1
	for _, r := range s {
		if r.Step <= 0 {
			return 0
		}
		n := int((r.Max-r.Min)/r.Step) + 1
		if n < 1 {
			n = 1
		}
		total *= n
	}
	return total
}

// Grid enumerates every combination in deterministic order.
func (s Space) Grid() ([]strategies.Params, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("empty parameter space")
	}
	for _, r := range s {
		if r.Step <= 0 {
			return nil, fmt.Errorf("dimension %q has no step; grid search needs one", r.Key)
		}
	}

	out := []strategies.Params{{}}
	for _, r := range s {
		var next []strategies.Params
		for v := r.Min; v <= r.Max+r.Step/2; v += r.Step {
			for _, base := range out {
				p := strategies.Params{}
				for k, x := range base {
					p[k] = x
				}
				p[r.Key] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out, nil
}

// Sample draws n parameter sets uniformly at random, seeded for
// reproducibility.
func (s Space) Sample(n int, seed int64) ([]strategies.Params, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("empty parameter space")
	}
	rng := rand.New(rand.NewSource(seed))

	out := make([]strategies.Params, 0, n)
	for i := 0; i < n; i++ {
		p := strategies.Params{}
		for _, r := range s {
			v := r.Min + rng.Float64()*(r.Max-r.Min)
			if r.Step > 0 {
				// Snap to the grid so sampled candidates are reusable as
				// grid points.
				steps := float64(int(v/r.Step + 0.5))
				v = steps * r.Step
				if v < r.Min {
					v = r.Min
				}
				if v > r.Max {
					v = r.Max
				}
			}
			p[r.Key] = v
		}
		out = append(out, p)
	}
	return out, nil
}

// Candidates produces the evaluation list given a budget: the full grid if
// it fits inside maxEvals, otherwise a seeded random sample of maxEvals
// parameter sets.
func (s Space) Candidates(maxEvals int, seed int64) ([]strategies.Params, error) {
	if size := s.Size(); size > 0 && size <= maxEvals {
		return s.Grid()
	}
	return s.Sample(maxEvals, seed)
}
