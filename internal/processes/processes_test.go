package processes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pijarcapital/expansion-dss/internal/rng"
)

func TestGBMZeroVolatilityIsDeterministic(t *testing.T) {
	g := NewGBM(0.08, 0, 1.0/12)
	stream := rng.NewStream(1)
	path := g.Path(1000, 36, stream)
	for m, v := range path {
		want := 1000 * math.Exp(0.08*float64(m)/12)
		assert.InDelta(t, want, v, 1e-6)
	}
}

func TestGBMQuantileMonotoneInQ(t *testing.T) {
	g := NewGBM(0.05, 0.2, 1.0)
	low := g.Quantile(100, 1, 0.1)
	mid := g.Quantile(100, 1, 0.5)
	high := g.Quantile(100, 1, 0.9)
	assert.Less(t, low, mid)
	assert.Less(t, mid, high)
}

func TestJumpDiffusionMeanMatchesDrift(t *testing.T) {
	j := NewJumpDiffusion(0.10, 0.2, 2.0, -0.05, 0.1, 1.0/12)
	stream := rng.NewStream(99)
	const horizon = 12
	const trials = 20000
	ratioSum := 0.0
	for i := 0; i < trials; i++ {
		path := j.Path(100, horizon, stream)
		ratioSum += path[horizon] / 100
	}
	empirical := math.Log(ratioSum / trials)
	expected := j.Drift * float64(horizon) / 12
	assert.InDelta(t, expected, empirical, 0.05)
}

func TestRegimeSwitchingRejectsBadShape(t *testing.T) {
	_, err := NewRegimeSwitchingModel(
		[]Regime{RegimeNormal, RegimeStress},
		[][]float64{{0.5, 0.5}},
		RegimeNormal,
		DefaultRegimeMultipliers,
	)
	require.Error(t, err)
}

func TestRegimeSwitchingRejectsNonStochasticRows(t *testing.T) {
	_, err := NewRegimeSwitchingModel(
		[]Regime{RegimeNormal, RegimeStress},
		[][]float64{{0.5, 0.6}, {0.5, 0.5}},
		RegimeNormal,
		DefaultRegimeMultipliers,
	)
	require.Error(t, err)
}

func TestRegimePathExcludesInitialState(t *testing.T) {
	matrix := [][]float64{{0, 1}, {1, 0}}
	model, err := NewRegimeSwitchingModel([]Regime{RegimeNormal, RegimeStress}, matrix, RegimeNormal, DefaultRegimeMultipliers)
	require.NoError(t, err)
	stream := rng.NewStream(1)
	path := model.Path(4, stream)
	require.Len(t, path, 4)
	assert.Equal(t, RegimeStress, path[0]) // first recorded entry is the *next* regime, not Normal
}

func TestStationaryDistributionAbsorbingStress(t *testing.T) {
	matrix := [][]float64{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}}
	model, err := NewRegimeSwitchingModel(DefaultRegimeOrder, matrix, RegimeNormal, DefaultRegimeMultipliers)
	require.NoError(t, err)
	pi := model.StationaryDistribution()
	assert.InDelta(t, 1.0, pi[1], 1e-6)
	assert.InDelta(t, 0.0, pi[0], 1e-6)
	assert.InDelta(t, 0.0, pi[2], 1e-6)
}

func TestDefaultTransitionMatrixRowsStochastic(t *testing.T) {
	matrix := DefaultTransitionMatrix(0.2, 0.1, 0.9)
	for _, row := range matrix {
		sum := 0.0
		for _, p := range row {
			sum += p
			assert.GreaterOrEqual(t, p, 0.0)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestCompoundPoissonZeroLambdaIsZero(t *testing.T) {
	cp := NewCompoundPoisson(0, func(s *rng.Stream) float64 { return s.NormFloat64() })
	stream := rng.NewStream(1)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0.0, cp.Sample(stream))
	}
}
