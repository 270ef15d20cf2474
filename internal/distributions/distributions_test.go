package distributions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pijarcapital/expansion-dss/internal/errs"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

func TestTriangularRejectsBadOrdering(t *testing.T) {
	_, err := NewTriangular(10, 5, 1)
	require.Error(t, err)
	var ip *errs.InvalidParameter
	assert.ErrorAs(t, err, &ip)
}

func TestTriangularSampleWithinSupport(t *testing.T) {
	tri, err := NewTriangular(1, 2, 10)
	require.NoError(t, err)
	stream := rng.NewStream(1)
	for _, v := range tri.Sample(10000, stream) {
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 10.0)
	}
}

func TestTriangularDegenerateAlwaysMode(t *testing.T) {
	tri, err := NewTriangular(5, 5, 5)
	require.NoError(t, err)
	stream := rng.NewStream(1)
	for _, v := range tri.Sample(100, stream) {
		assert.Equal(t, 5.0, v)
	}
}

func TestBetaRejectsNonPositiveParams(t *testing.T) {
	_, err := NewBeta(0, 2)
	assert.Error(t, err)
	_, err = NewBeta(2, -1)
	assert.Error(t, err)
}

func TestBetaSupportAndMean(t *testing.T) {
	b, err := NewBeta(2, 5)
	require.NoError(t, err)
	stream := rng.NewStream(7)
	samples := b.Sample(500000, stream)
	sum := 0.0
	for _, v := range samples {
		assert.True(t, v > 0 && v < 1)
		sum += v
	}
	empiricalMean := sum / float64(len(samples))
	assert.InDelta(t, b.Mean(), empiricalMean, 0.01)
}

func TestLogNormalFromMeanCV(t *testing.T) {
	ln, err := NewLogNormalFromMeanCV(100, 0.2)
	require.NoError(t, err)
	stream := rng.NewStream(13)
	samples := ln.Sample(1000000, stream)
	var sum, sumsq float64
	for _, v := range samples {
		sum += v
		sumsq += v * v
	}
	n := float64(len(samples))
	mean := sum / n
	variance := sumsq/n - mean*mean
	cv := math.Sqrt(variance) / mean
	assert.InDelta(t, 100, mean, 1.0)
	assert.InDelta(t, 0.2, cv, 0.01)
}

func TestGammaConstructorsAgree(t *testing.T) {
	g1, err := NewGamma(4, 2)
	require.NoError(t, err)
	g2, err := NewGammaFromMeanCV(g1.Mean(), g1.Std()/g1.Mean())
	require.NoError(t, err)
	assert.InDelta(t, g1.Shape, g2.Shape, 1e-9)
	assert.InDelta(t, g1.Scale, g2.Scale, 1e-9)
}

func TestInvalidParametersFailBeforeSampling(t *testing.T) {
	_, err := NewGamma(-1, 2)
	assert.Error(t, err)
	_, err = NewLogNormal(0, -1)
	assert.Error(t, err)
}

func TestFixedIsPointMass(t *testing.T) {
	f := NewFixed(42)
	stream := rng.NewStream(1)
	for _, v := range f.Sample(50, stream) {
		assert.Equal(t, 42.0, v)
	}
	assert.Equal(t, 0.0, f.Std())
	lo, hi := f.Support()
	assert.Equal(t, 42.0, lo)
	assert.Equal(t, 42.0, hi)
}
