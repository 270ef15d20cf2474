package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileMedian(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, Percentile(data, 50))
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	data := []float64{5, 1, 3}
	_ = Percentile(data, 50)
	assert.Equal(t, []float64{5, 1, 3}, data)
}

func TestDrawdownExample(t *testing.T) {
	equity := []float64{100, 110, 105, 120, 90, 115}
	_, maxDD := Drawdown(equity)
	assert.InDelta(t, 0.25, maxDD, 1e-9)
}

func TestSafeDivideFallback(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(5, 0, 0))
	assert.Equal(t, 2.5, SafeDivide(5, 2, 0))
}

func TestEmpiricalCDFMonotone(t *testing.T) {
	values, probs := EmpiricalCDF([]float64{3, 1, 2})
	assert.Equal(t, []float64{1, 2, 3}, values)
	assert.Equal(t, []float64{1.0 / 3, 2.0 / 3, 1.0}, probs)
}

func TestCumMax(t *testing.T) {
	assert.Equal(t, []float64{1, 3, 3, 5}, CumMax([]float64{1, 3, 2, 5}))
}

func TestReturnPct(t *testing.T) {
	assert.InDelta(t, 50.0, ReturnPct(150, 100), 1e-9)
	assert.InDelta(t, -100.0, ReturnPct(0, 100), 1e-9)
	assert.Equal(t, 0.0, ReturnPct(150, 0))
}

func TestEquispacedIndicesSmallerThanTarget(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, EquispacedIndices(3, 50))
}

func TestEquispacedIndicesSpansFullRange(t *testing.T) {
	idx := EquispacedIndices(100, 5)
	require.Len(t, idx, 5)
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, 99, idx[len(idx)-1])
}
