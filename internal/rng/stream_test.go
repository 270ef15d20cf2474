package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeterministic(t *testing.T) {
	a := NewStream(42)
	b := NewStream(42)
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestSpawnIndependentOfParent(t *testing.T) {
	parent := NewStream(7)
	before := parent.Float64()
	_ = parent.Spawn(4)
	after := parent.Float64()
	assert.NotEqual(t, before, after, "spawning should not reseed the parent, only advance it by its own draws")
}

func TestSpawnDeterministic(t *testing.T) {
	p1 := NewStream(123)
	p2 := NewStream(123)
	c1 := p1.Spawn(8)
	c2 := p2.Spawn(8)
	for i := range c1 {
		assert.Equal(t, c1[i].Seed(), c2[i].Seed())
	}
}

func TestSpawnStreamsDiffer(t *testing.T) {
	children := NewStream(1).Spawn(16)
	seen := map[int64]bool{}
	for _, c := range children {
		assert.False(t, seen[c.Seed()], "spawned seeds should not collide")
		seen[c.Seed()] = true
	}
}

func TestBetaSupport(t *testing.T) {
	s := NewStream(99)
	for i := 0; i < 10000; i++ {
		v := s.Beta(2, 5)
		assert.True(t, v > 0 && v < 1)
	}
}

func TestTriangularSupport(t *testing.T) {
	s := NewStream(5)
	for i := 0; i < 10000; i++ {
		v := s.Triangular(10, 20, 30)
		assert.GreaterOrEqual(t, v, 10.0)
		assert.LessOrEqual(t, v, 30.0)
	}
}

func TestTriangularDegenerate(t *testing.T) {
	s := NewStream(5)
	for i := 0; i < 100; i++ {
		assert.Equal(t, 5.0, s.Triangular(5, 5, 5))
	}
}

func TestPoissonMeanApprox(t *testing.T) {
	s := NewStream(11)
	const lambda = 6.0
	sum := 0
	const n = 200000
	for i := 0; i < n; i++ {
		sum += s.Poisson(lambda)
	}
	mean := float64(sum) / n
	assert.InDelta(t, lambda, mean, 0.05)
}

func TestBinomialBounds(t *testing.T) {
	s := NewStream(3)
	for i := 0; i < 1000; i++ {
		v := s.Binomial(50, 0.3)
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 50)
	}
}

func TestGammaMeanApprox(t *testing.T) {
	s := NewStream(21)
	const shape, scale = 4.0, 2.0
	sum := 0.0
	const n = 200000
	for i := 0; i < n; i++ {
		sum += s.Gamma(shape, scale)
	}
	mean := sum / n
	assert.InDelta(t, shape*scale, mean, 0.2)
}

func TestCategoricalDistribution(t *testing.T) {
	s := NewStream(17)
	counts := make([]int, 3)
	const n = 100000
	for i := 0; i < n; i++ {
		counts[s.Categorical([]float64{0.5, 0.35, 0.15})]++
	}
	assert.InDelta(t, 0.5, float64(counts[0])/n, 0.02)
	assert.InDelta(t, 0.35, float64(counts[1])/n, 0.02)
	assert.InDelta(t, 0.15, float64(counts[2])/n, 0.02)
}

func TestNormFloat64MeanAndStd(t *testing.T) {
	s := NewStream(33)
	const n = 200000
	sum, sumsq := 0.0, 0.0
	for i := 0; i < n; i++ {
		v := s.NormFloat64()
		sum += v
		sumsq += v * v
	}
	mean := sum / n
	variance := sumsq/n - mean*mean
	assert.InDelta(t, 0.0, mean, 0.02)
	assert.InDelta(t, 1.0, math.Sqrt(variance), 0.02)
}
