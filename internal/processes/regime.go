package processes

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/pijarcapital/expansion-dss/internal/errs"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

// Regime is a latent macro state governing per-step multipliers.
type Regime string

const (
	RegimeNormal Regime = "normal"
	RegimeStress Regime = "stress"
	RegimeBoom   Regime = "boom"
)

// RegimeMultipliers is the table of six per-regime multipliers applied to
// the business model's channels.
type RegimeMultipliers struct {
	Lead          float64
	WinRate       float64
	Churn         float64
	Revenue       float64
	Cost          float64
	RiskIntensity float64
}

// DefaultRegimeMultipliers is the donor-matching default table.
var DefaultRegimeMultipliers = map[Regime]RegimeMultipliers{
	RegimeNormal: {Lead: 1.0, WinRate: 1.0, Churn: 1.0, Revenue: 1.0, Cost: 1.0, RiskIntensity: 1.0},
	RegimeStress: {Lead: 0.7, WinRate: 0.85, Churn: 1.3, Revenue: 0.95, Cost: 1.1, RiskIntensity: 2.0},
	RegimeBoom:   {Lead: 1.4, WinRate: 1.15, Churn: 0.8, Revenue: 1.1, Cost: 0.95, RiskIntensity: 0.5},
}

// DefaultRegimeOrder fixes an iteration order for the three default regimes;
// stochastic code must never range over a map of regimes (order would
// become a source of nondeterminism), mirroring the donor's fixed
// AssetClassOrder discipline for the same reason.
var DefaultRegimeOrder = []Regime{RegimeNormal, RegimeStress, RegimeBoom}

// RegimeSwitchingModel is a discrete-time Markov chain over a fixed,
// ordered set of regimes.
type RegimeSwitchingModel struct {
	regimes     []Regime
	index       map[Regime]int
	transition  [][]float64
	initial     Regime
	multipliers map[Regime]RegimeMultipliers
}

// NewRegimeSwitchingModel validates that transition is square and
// row-stochastic within tolerance 1e-9.
func NewRegimeSwitchingModel(regimes []Regime, transition [][]float64, initial Regime, multipliers map[Regime]RegimeMultipliers) (*RegimeSwitchingModel, error) {
	k := len(regimes)
	if len(transition) != k {
		return nil, &errs.ShapeMismatch{Expected: fmt.Sprintf("%dx%d", k, k), Actual: fmt.Sprintf("%d rows", len(transition))}
	}
	for i, row := range transition {
		if len(row) != k {
			return nil, &errs.ShapeMismatch{Expected: fmt.Sprintf("%dx%d", k, k), Actual: fmt.Sprintf("row %d has %d cols", i, len(row))}
		}
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if sum < 1-1e-9 || sum > 1+1e-9 {
			return nil, &errs.ShapeMismatch{Expected: "rows summing to 1", Actual: fmt.Sprintf("row %d sums to %v", i, sum)}
		}
	}
	index := make(map[Regime]int, k)
	for i, r := range regimes {
		index[r] = i
	}
	return &RegimeSwitchingModel{
		regimes:     regimes,
		index:       index,
		transition:  transition,
		initial:     initial,
		multipliers: multipliers,
	}, nil
}

// Multipliers returns the multiplier table for r.
func (m *RegimeSwitchingModel) Multipliers(r Regime) RegimeMultipliers { return m.multipliers[r] }

// Initial returns the model's configured initial regime.
func (m *RegimeSwitchingModel) Initial() Regime { return m.initial }

// Next samples the next regime given the current one, using stream's draw.
func (m *RegimeSwitchingModel) Next(current Regime, stream *rng.Stream) Regime {
	row := m.transition[m.index[current]]
	idx := stream.Categorical(row)
	return m.regimes[idx]
}

// Path returns n sampled regimes starting from the model's initial regime.
// The returned slice does NOT include the initial regime itself — its
// first element is the result of the first Next call from Initial(). This
// mirrors an observed behavior of the system this module was modeled on
// and is preserved deliberately rather than "fixed" (see DESIGN.md, Open
// Question 1): regime_path excludes month -1's true starting state.
func (m *RegimeSwitchingModel) Path(n int, stream *rng.Stream) []Regime {
	out := make([]Regime, n)
	current := m.initial
	for i := 0; i < n; i++ {
		current = m.Next(current, stream)
		out[i] = current
	}
	return out
}

// StationaryDistribution solves pi*P = pi subject to sum(pi)=1 via least
// squares on the augmented system, then clips negative entries to zero and
// renormalizes. For matrices close to absorbing (a near-zero eigengap) this
// is an approximation, not an exact stationary distribution — callers
// needing guaranteed exactness should not rely on this for ill-conditioned
// chains (see DESIGN.md, Open Question 3).
func (m *RegimeSwitchingModel) StationaryDistribution() []float64 {
	k := len(m.regimes)

	// Build (P^T - I) stacked with a row of ones, and solve for pi such
	// that (P^T - I) pi = 0 and sum(pi) = 1, using least squares.
	a := mat.NewDense(k+1, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			v := m.transition[j][i]
			if i == j {
				v -= 1
			}
			a.Set(i, j, v)
		}
	}
	for j := 0; j < k; j++ {
		a.Set(k, j, 1)
	}
	b := mat.NewVecDense(k+1, nil)
	b.SetVec(k, 1)

	var pi mat.VecDense
	_ = pi.SolveVec(a, b)

	out := make([]float64, k)
	total := 0.0
	for i := 0; i < k; i++ {
		v := pi.AtVec(i)
		if v < 0 {
			v = 0
		}
		out[i] = v
		total += v
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out
}

// DefaultTransitionMatrix builds a plausible row-stochastic transition
// matrix over (Normal, Stress, Boom) given target stationary probabilities
// for Stress and Boom and a diagonal persistence target. Each row keeps
// persistence on its own regime and distributes the remainder across the
// other two regimes in proportion to their target stationary share; the
// result is row-normalized but not guaranteed to hit the target stationary
// distribution exactly (see DESIGN.md, Open Question 3 — same caveat as
// StationaryDistribution).
func DefaultTransitionMatrix(pStress, pBoom, persistence float64) [][]float64 {
	pNormal := 1 - pStress - pBoom
	if pNormal < 0 {
		pNormal = 0
	}
	targets := map[Regime]float64{RegimeNormal: pNormal, RegimeStress: pStress, RegimeBoom: pBoom}

	matrix := make([][]float64, len(DefaultRegimeOrder))
	for i, from := range DefaultRegimeOrder {
		row := make([]float64, len(DefaultRegimeOrder))
		remainder := 1 - persistence
		otherTotal := 0.0
		for _, r := range DefaultRegimeOrder {
			if r != from {
				otherTotal += targets[r]
			}
		}
		for j, to := range DefaultRegimeOrder {
			if to == from {
				row[j] = persistence
				continue
			}
			if otherTotal > 0 {
				row[j] = remainder * targets[to] / otherTotal
			} else {
				row[j] = remainder / float64(len(DefaultRegimeOrder)-1)
			}
		}
		matrix[i] = row
	}
	return matrix
}
