// Package business encapsulates the domain logic of the expansion model:
// how leads become pipeline deals, how deals become customers, and how
// customers generate revenue, incur cost, and churn.
package business

import (
	"math"

	"github.com/pijarcapital/expansion-dss/internal/distributions"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

// ChannelMultipliers is the combined (regime x risk) multiplier set applied
// to the four shock-bearing channels. WinRate is carried separately since
// only the regime (never a risk shock) affects it.
type ChannelMultipliers struct {
	Adoption float64
	Churn    float64
	Revenue  float64
	Cost     float64
}

// Neutral is the identity multiplier set.
var Neutral = ChannelMultipliers{Adoption: 1, Churn: 1, Revenue: 1, Cost: 1}

// PipelineDeal is a lead under contract negotiation. WillConvert is decided
// at entry and never re-sampled, so a deal's eventual effect on the
// customer count is fixed the moment it enters the pipeline.
type PipelineDeal struct {
	EntryMonth    int
	CloseMonth    int
	WillConvert   bool
	ContractValue float64
	IsBUMN        bool
}

// State is the per-path mutable business state.
type State struct {
	Capital     float64
	Customers   int
	Pipeline    []PipelineDeal
	PeakCapital float64
	MaxDrawdown float64
	// BreakevenMonth is -1 until the business first reaches its initial
	// capital outside the development phase (see the breakeven rule in
	// simulate.Simulator.Run); it can never be set while still in development.
	BreakevenMonth int
}

// NewState constructs a State with the given starting capital.
func NewState(initialCapital float64) *State {
	return &State{Capital: initialCapital, PeakCapital: initialCapital, BreakevenMonth: -1}
}

// UpdateDrawdown refreshes PeakCapital and MaxDrawdown from the current capital.
func (s *State) UpdateDrawdown() {
	if s.Capital > s.PeakCapital {
		s.PeakCapital = s.Capital
	}
	if s.PeakCapital > 0 {
		dd := (s.PeakCapital - s.Capital) / s.PeakCapital
		if dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
}

// SizeBucket is one of the three contract-size categories.
type SizeBucket string

const (
	SizeSmall  SizeBucket = "small"
	SizeMedium SizeBucket = "medium"
	SizeLarge  SizeBucket = "large"
)

// Model is the core expansion business model: pipeline dynamics, churn,
// revenue, and cost.
type Model struct {
	ContractDistributions map[SizeBucket]distributions.Distribution
	sizeOrder              []SizeBucket
	sizeProbs              []float64
	SalesCycle             distributions.Distribution
	OpOverhead             float64
	CostPerCustomer        float64
}

// NewModel normalizes sizeWeights and constructs a Model. sizeOrder fixes a
// deterministic iteration order over the (otherwise unordered) weight map,
// so categorical sampling never depends on Go's randomized map iteration.
func NewModel(
	contractDistributions map[SizeBucket]distributions.Distribution,
	sizeWeights map[SizeBucket]float64,
	salesCycle distributions.Distribution,
	opOverhead, costPerCustomer float64,
) *Model {
	order := []SizeBucket{SizeSmall, SizeMedium, SizeLarge}
	total := 0.0
	for _, b := range order {
		total += sizeWeights[b]
	}
	probs := make([]float64, len(order))
	if total > 0 {
		for i, b := range order {
			probs[i] = sizeWeights[b] / total
		}
	}
	return &Model{
		ContractDistributions: contractDistributions,
		sizeOrder:             order,
		sizeProbs:             probs,
		SalesCycle:            salesCycle,
		OpOverhead:            opOverhead,
		CostPerCustomer:       costPerCustomer,
	}
}

// SampleContractValue picks a size bucket categorically, then draws a
// contract value from that bucket's distribution.
func (m *Model) SampleContractValue(stream *rng.Stream) (SizeBucket, float64) {
	idx := stream.Categorical(m.sizeProbs)
	size := m.sizeOrder[idx]
	value := m.ContractDistributions[size].Sample(1, stream)[0]
	return size, value
}

// SampleSalesCycle draws a sales cycle duration in months, rounded to >= 1.
func (m *Model) SampleSalesCycle(stream *rng.Stream) int {
	duration := m.SalesCycle.Sample(1, stream)[0]
	rounded := int(math.Round(duration))
	if rounded < 1 {
		rounded = 1
	}
	return rounded
}

// ProcessNewLeads appends nLeads new pipeline deals, each independently
// classified BUMN or open-market, with its conversion outcome decided now
// (not re-sampled at close) and its close month fixed at entry.
func (m *Model) ProcessNewLeads(
	state *State,
	month int,
	nLeads int,
	winRateBUMN, winRateOpen, bumnRatio float64,
	winRateMultiplier float64,
	stream *rng.Stream,
) int {
	for i := 0; i < nLeads; i++ {
		isBUMN := stream.Bernoulli(bumnRatio)
		baseWin := winRateOpen
		if isBUMN {
			baseWin = winRateBUMN
		}
		effectiveWin := math.Min(1.0, baseWin*winRateMultiplier)
		willConvert := stream.Bernoulli(effectiveWin)

		_, value := m.SampleContractValue(stream)
		cycle := m.SampleSalesCycle(stream)

		state.Pipeline = append(state.Pipeline, PipelineDeal{
			EntryMonth:    month,
			CloseMonth:    month + cycle,
			WillConvert:   willConvert,
			ContractValue: value,
			IsBUMN:        isBUMN,
		})
	}
	return nLeads
}

// ProcessPipelineClosings closes every deal with CloseMonth <= month,
// crediting a new customer for each converting deal and discarding
// non-converting deals. Every deal affects the customer count at most once.
func (m *Model) ProcessPipelineClosings(state *State, month int) int {
	remaining := state.Pipeline[:0:0]
	newCustomers := 0
	for _, d := range state.Pipeline {
		if d.CloseMonth > month {
			remaining = append(remaining, d)
			continue
		}
		if d.WillConvert {
			newCustomers++
		}
	}
	state.Pipeline = remaining
	state.Customers += newCustomers
	return newCustomers
}

// ApplyChurn converts an annual churn rate to a monthly probability and
// draws the number of churned customers as Binomial(customers, p).
func (m *Model) ApplyChurn(state *State, annualChurnRate, churnMultiplier float64, stream *rng.Stream) int {
	if state.Customers == 0 {
		return 0
	}
	effectiveAnnual := math.Min(0.99, annualChurnRate*churnMultiplier)
	monthlyProb := 1 - math.Pow(1-effectiveAnnual, 1.0/12)
	churned := stream.Binomial(state.Customers, monthlyProb)
	state.Customers -= churned
	if state.Customers < 0 {
		state.Customers = 0
	}
	return churned
}

// ComputeRevenue returns customers * (avgAnnualContract/12) * revenueMultiplier.
func (m *Model) ComputeRevenue(state *State, avgAnnualContract, revenueMultiplier float64) float64 {
	monthlyContract := avgAnnualContract / 12
	return float64(state.Customers) * monthlyContract * revenueMultiplier
}

// ComputeCosts returns devBurn*costMultiplier during development, or
// (opOverhead + customers*costPerCustomer)*costMultiplier afterward.
func (m *Model) ComputeCosts(state *State, isDevPhase bool, devBurn, costMultiplier float64) float64 {
	if isDevPhase {
		return devBurn * costMultiplier
	}
	fixed := m.OpOverhead
	variable := float64(state.Customers) * m.CostPerCustomer
	return (fixed + variable) * costMultiplier
}

// AverageContractValue returns the weighted-mean annual contract value
// across size buckets, used as the revenue driver's per-customer rate.
func (m *Model) AverageContractValue() float64 {
	total := 0.0
	for i, size := range m.sizeOrder {
		total += m.sizeProbs[i] * m.ContractDistributions[size].Mean()
	}
	return total
}
