// Package simulate drives one Monte Carlo path: a month-by-month walk of
// the business model under a regime and risk-shock environment, stopping
// early on ruin.
package simulate

import (
	"github.com/pijarcapital/expansion-dss/internal/business"
	"github.com/pijarcapital/expansion-dss/internal/processes"
	"github.com/pijarcapital/expansion-dss/internal/risk"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

// Phase is the lifecycle stage of a single path.
type Phase string

const (
	PhaseDevelopment Phase = "development"
	PhaseOperating   Phase = "operating"
	PhaseRuined      Phase = "ruined"
)

// Config bundles everything one path needs beyond the business/risk models.
type Config struct {
	InitialCapital  float64
	DevMonths       int
	DevBurn         float64
	Horizon         int // total months simulated
	LeadsPerMonth   float64
	WinRateBUMN     float64
	WinRateOpen     float64
	BUMNRatio       float64
	AnnualChurnRate float64
}

// ShockEvent is one entry in a path's shock timeline: a risk event arriving
// on a given month, on a given channel, at a given severity.
type ShockEvent struct {
	Month    int
	Channel  string
	Severity float64
}

// Result is the full monthly trace of one simulated path.
type Result struct {
	CapitalPath    []float64
	CustomerPath   []int
	RevenuePath    []float64
	CostPath       []float64
	RegimePath     []processes.Regime
	FinalPhase     Phase
	RuinMonth      int // -1 if the path never ruined
	BreakevenMonth int // -1 if never reached
	MaxDrawdown    float64

	// ShockTimeline records every risk-event arrival observed on this path,
	// in month order.
	ShockTimeline []ShockEvent

	// RealizedParams freezes the scalar inputs that matter for sensitivity
	// and premortem analysis. In the current request shape these are fixed
	// per batch rather than sampled per path, so a batch-wide analysis over
	// this map often finds these columns zero-variance; analytics code must
	// treat that as internal/errs.NumericalDegenerate and skip the column
	// rather than failing (see DESIGN.md).
	RealizedParams map[string]float64
}

// Simulator runs one path at a time against a business model, regime model,
// and risk manager. The engine constructs a fresh Simulator (and risk
// manager) for every path; Run resets the risk manager before stepping.
type Simulator struct {
	Business *business.Model
	Regime   *processes.RegimeSwitchingModel
	Risk     *risk.Manager
	Config   Config
}

// New constructs a Simulator.
func New(model *business.Model, regime *processes.RegimeSwitchingModel, riskMgr *risk.Manager, cfg Config) *Simulator {
	return &Simulator{Business: model, Regime: regime, Risk: riskMgr, Config: cfg}
}

// Run executes one full path using stream for every random draw. The risk
// manager is reset at the start of Run so a Simulator can be reused safely
// across independent paths sharing the same worker.
func (s *Simulator) Run(stream *rng.Stream) *Result {
	s.Risk.Reset()

	cfg := s.Config
	state := business.NewState(cfg.InitialCapital)
	avgContract := s.Business.AverageContractValue()

	res := &Result{
		CapitalPath:    make([]float64, 0, cfg.Horizon+1),
		CustomerPath:   make([]int, 0, cfg.Horizon+1),
		RevenuePath:    make([]float64, 0, cfg.Horizon),
		CostPath:       make([]float64, 0, cfg.Horizon),
		RegimePath:     make([]processes.Regime, 0, cfg.Horizon),
		RuinMonth:      -1,
		BreakevenMonth: -1,
		FinalPhase:     PhaseOperating,
		RealizedParams: map[string]float64{
			"initial_capital":   cfg.InitialCapital,
			"dev_duration":      float64(cfg.DevMonths),
			"dev_burn":          cfg.DevBurn,
			"leads_per_month":   cfg.LeadsPerMonth,
			"win_rate_bumn":     cfg.WinRateBUMN,
			"win_rate_open":     cfg.WinRateOpen,
			"annual_churn_rate": cfg.AnnualChurnRate,
		},
	}
	res.CapitalPath = append(res.CapitalPath, state.Capital)
	res.CustomerPath = append(res.CustomerPath, state.Customers)

	currentRegime := s.Regime.Initial()

	for month := 1; month <= cfg.Horizon; month++ {
		isDev := month <= cfg.DevMonths

		// 1. Regime transitions before this month's draws are evaluated.
		currentRegime = s.Regime.Next(currentRegime, stream)
		res.RegimePath = append(res.RegimePath, currentRegime)
		regimeMult := s.Regime.Multipliers(currentRegime)

		// 2. New shocks arrive; their effect applies starting this same
		// month, ordered before this month's channel multipliers are read.
		arrived := s.Risk.CheckForArrivals(month, stream, regimeMult.RiskIntensity)
		for _, shock := range arrived {
			res.ShockTimeline = append(res.ShockTimeline, ShockEvent{
				Month:    month,
				Channel:  shock.Config.Channel,
				Severity: shock.Severity,
			})
		}
		riskMult := s.Risk.GetMultipliers()

		combined := business.ChannelMultipliers{
			Adoption: regimeMult.Lead * riskMult.Adoption,
			Churn:    regimeMult.Churn * riskMult.Churn,
			Revenue:  regimeMult.Revenue * riskMult.Revenue,
			Cost:     regimeMult.Cost * riskMult.Cost,
		}

		var revenue, cost float64
		if isDev {
			// 4. No pipeline activity, no revenue, during development.
			cost = s.Business.ComputeCosts(state, true, cfg.DevBurn, combined.Cost)
		} else {
			// 5. Pipeline dynamics and financials once operating.
			nLeads := stream.Poisson(cfg.LeadsPerMonth * combined.Adoption)
			s.Business.ProcessNewLeads(state, month, nLeads, cfg.WinRateBUMN, cfg.WinRateOpen, cfg.BUMNRatio, regimeMult.WinRate, stream)
			s.Business.ProcessPipelineClosings(state, month)
			s.Business.ApplyChurn(state, cfg.AnnualChurnRate, combined.Churn, stream)

			revenue = s.Business.ComputeRevenue(state, avgContract, combined.Revenue)
			cost = s.Business.ComputeCosts(state, false, cfg.DevBurn, combined.Cost)
		}

		// 6. Capital update.
		state.Capital += revenue - cost
		state.UpdateDrawdown()

		res.RevenuePath = append(res.RevenuePath, revenue)
		res.CostPath = append(res.CostPath, cost)
		res.CapitalPath = append(res.CapitalPath, state.Capital)
		res.CustomerPath = append(res.CustomerPath, state.Customers)

		// 7. Breakeven is only recorded once the business has left
		// development, matching the recording rule in SPEC_FULL.md Open
		// Question 2: a dev-phase capital rebound never counts.
		if !isDev && res.BreakevenMonth == -1 && state.Capital >= cfg.InitialCapital {
			res.BreakevenMonth = month
		}

		// Shock recovery happens last, after this month's channel effects
		// have already been read.
		s.Risk.ProcessRecoveries(stream)

		// 9. Ruin short-circuit.
		if state.Capital <= 0 {
			res.RuinMonth = month
			res.FinalPhase = PhaseRuined
			break
		}
	}

	if res.RuinMonth == -1 && cfg.DevMonths >= cfg.Horizon {
		res.FinalPhase = PhaseDevelopment
	}
	res.MaxDrawdown = state.MaxDrawdown
	return res
}
