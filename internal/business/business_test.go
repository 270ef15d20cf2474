package business

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pijarcapital/expansion-dss/internal/distributions"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

func testModel(t *testing.T) *Model {
	t.Helper()
	small := distributions.NewFixed(50_000)
	medium := distributions.NewFixed(150_000)
	large := distributions.NewFixed(500_000)
	cycle, err := distributions.NewTriangular(1, 2, 4)
	require.NoError(t, err)
	return NewModel(
		map[SizeBucket]distributions.Distribution{
			SizeSmall:  small,
			SizeMedium: medium,
			SizeLarge:  large,
		},
		map[SizeBucket]float64{SizeSmall: 0.6, SizeMedium: 0.3, SizeLarge: 0.1},
		cycle, 20_000, 500,
	)
}

func TestUpdateDrawdownTracksPeakAndMax(t *testing.T) {
	s := NewState(100)
	s.Capital = 110
	s.UpdateDrawdown()
	assert.Equal(t, 110.0, s.PeakCapital)
	assert.Equal(t, 0.0, s.MaxDrawdown)

	s.Capital = 90
	s.UpdateDrawdown()
	assert.InDelta(t, (110.0-90.0)/110.0, s.MaxDrawdown, 1e-9)

	s.Capital = 95
	s.UpdateDrawdown()
	assert.InDelta(t, (110.0-90.0)/110.0, s.MaxDrawdown, 1e-9, "max drawdown must not shrink on partial recovery")
}

func TestProcessNewLeadsAssignsCloseMonthAndOutcome(t *testing.T) {
	m := testModel(t)
	state := NewState(1_000_000)
	stream := rng.NewStream(1)
	m.ProcessNewLeads(state, 5, 20, 1.0, 1.0, 0.3, 1.0, stream)
	require.Len(t, state.Pipeline, 20)
	for _, d := range state.Pipeline {
		assert.GreaterOrEqual(t, d.CloseMonth, d.EntryMonth+1)
		assert.True(t, d.WillConvert) // win rate forced to 1.0
	}
}

func TestProcessPipelineClosingsCreditsOnlyConvertingDeals(t *testing.T) {
	m := testModel(t)
	state := NewState(1_000_000)
	state.Pipeline = []PipelineDeal{
		{EntryMonth: 1, CloseMonth: 3, WillConvert: true, ContractValue: 1000},
		{EntryMonth: 1, CloseMonth: 3, WillConvert: false, ContractValue: 1000},
		{EntryMonth: 2, CloseMonth: 5, WillConvert: true, ContractValue: 1000},
	}
	newCustomers := m.ProcessPipelineClosings(state, 3)
	assert.Equal(t, 1, newCustomers)
	assert.Equal(t, 1, state.Customers)
	require.Len(t, state.Pipeline, 1)
	assert.Equal(t, 5, state.Pipeline[0].CloseMonth)
}

func TestApplyChurnNeverGoesNegative(t *testing.T) {
	m := testModel(t)
	state := NewState(1_000_000)
	state.Customers = 3
	stream := rng.NewStream(2)
	for i := 0; i < 50; i++ {
		m.ApplyChurn(state, 0.99, 1.0, stream)
	}
	assert.GreaterOrEqual(t, state.Customers, 0)
}

func TestComputeCostsSwitchesOnDevPhase(t *testing.T) {
	m := testModel(t)
	state := NewState(1_000_000)
	state.Customers = 10
	devCost := m.ComputeCosts(state, true, 40_000, 1.0)
	assert.Equal(t, 40_000.0, devCost)

	opCost := m.ComputeCosts(state, false, 40_000, 1.0)
	assert.Equal(t, m.OpOverhead+10*m.CostPerCustomer, opCost)
}

func TestAverageContractValueIsWeightedMean(t *testing.T) {
	m := testModel(t)
	expected := 0.6*50_000 + 0.3*150_000 + 0.1*500_000
	assert.InDelta(t, expected, m.AverageContractValue(), 1e-6)
}
