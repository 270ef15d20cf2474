package processes

import "github.com/pijarcapital/expansion-dss/internal/rng"

// RateModifier scales a Poisson process's base rate at step t given
// arbitrary caller state and context (e.g. the active regime).
type RateModifier func(t int, state, context any) float64

// Poisson is a Poisson arrival process with an optional rate modifier.
type Poisson struct {
	BaseRate float64
	Modifier RateModifier
}

// NewPoisson constructs a Poisson process with base rate lambda0 >= 0 and an
// optional modifier (nil means a constant multiplier of 1).
func NewPoisson(lambda0 float64, modifier RateModifier) *Poisson {
	return &Poisson{BaseRate: lambda0, Modifier: modifier}
}

// EffectiveRate returns max(0, lambda0 * modifier(t, state, context)).
func (p *Poisson) EffectiveRate(t int, state, context any) float64 {
	mult := 1.0
	if p.Modifier != nil {
		mult = p.Modifier(t, state, context)
	}
	rate := p.BaseRate * mult
	if rate < 0 {
		rate = 0
	}
	return rate
}

// SampleCount draws a count for step t.
func (p *Poisson) SampleCount(stream *rng.Stream, t int, state, context any) int {
	return stream.Poisson(p.EffectiveRate(t, state, context))
}

// CumulativePath returns the prefix sums of n per-step counts.
func CumulativePath(counts []int) []int {
	out := make([]int, len(counts))
	running := 0
	for i, c := range counts {
		running += c
		out[i] = running
	}
	return out
}

// MagnitudeSampler draws one i.i.d. jump magnitude.
type MagnitudeSampler func(stream *rng.Stream) float64

// CompoundPoisson sums N i.i.d. magnitudes per step, N ~ Poisson(lambda).
type CompoundPoisson struct {
	Lambda    float64
	Magnitude MagnitudeSampler
}

// NewCompoundPoisson constructs a compound Poisson process.
func NewCompoundPoisson(lambda float64, magnitude MagnitudeSampler) *CompoundPoisson {
	return &CompoundPoisson{Lambda: lambda, Magnitude: magnitude}
}

// Sample draws one step's total: sum of N i.i.d. magnitudes, N ~ Poisson(lambda).
func (c *CompoundPoisson) Sample(stream *rng.Stream) float64 {
	n := stream.Poisson(c.Lambda)
	total := 0.0
	for i := 0; i < n; i++ {
		total += c.Magnitude(stream)
	}
	return total
}
