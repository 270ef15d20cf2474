// Package config defines the inputs to one simulation run: the raw request
// shape accepted at the API/CLI boundary, validation, and a handful of
// named presets bundling a reasonable starting parameter set.
package config

import (
	"github.com/pijarcapital/expansion-dss/internal/business"
	"github.com/pijarcapital/expansion-dss/internal/distributions"
	"github.com/pijarcapital/expansion-dss/internal/errs"
	"github.com/pijarcapital/expansion-dss/internal/processes"
	"github.com/pijarcapital/expansion-dss/internal/risk"
	"github.com/pijarcapital/expansion-dss/internal/simulate"
)

// RiskEventRequest is the wire shape of one caller-supplied risk event: a
// severity triangular(min, mode, max) and an annualized arrival rate on a
// single channel, with an optional activation window.
type RiskEventRequest struct {
	Type              string     `json:"type"`
	AnnualProbability float64    `json:"annual_probability"`
	Channel           string     `json:"channel"`
	Severity          [3]float64 `json:"severity"` // {min, mode, max}
	RecoveryRate      float64    `json:"recovery_rate"`
	StartMonth        int        `json:"start_month,omitempty"`
	EndMonth          int        `json:"end_month,omitempty"`
}

// RunRequest is the externally facing description of one batch: plain
// numbers and weights, not yet built into distributions or models.
type RunRequest struct {
	Seed     int64 `json:"seed"`
	NumPaths int   `json:"num_paths"`

	InitialCapital  float64 `json:"initial_capital"`
	DevMonths       int     `json:"dev_months"`
	DevBurn         float64 `json:"dev_burn"`
	HorizonMonths   int     `json:"horizon_months"`
	LeadsPerMonth   float64 `json:"leads_per_month"`
	WinRateBUMN     float64 `json:"win_rate_bumn"`
	WinRateOpen     float64 `json:"win_rate_open"`
	BUMNRatio       float64 `json:"bumn_ratio"`
	AnnualChurnRate float64 `json:"annual_churn_rate"`

	ContractSmall    [3]float64 `json:"contract_small"` // {min, mode, max}
	ContractMedium   [3]float64 `json:"contract_medium"`
	ContractLarge    [3]float64 `json:"contract_large"`
	SizeWeightSmall  float64    `json:"size_weight_small"`
	SizeWeightMedium float64    `json:"size_weight_medium"`
	SizeWeightLarge  float64    `json:"size_weight_large"`
	SalesCycle       [3]float64 `json:"sales_cycle"`
	OpOverhead       float64    `json:"op_overhead"`
	CostPerCustomer  float64    `json:"cost_per_customer"`

	// EnableRegimeSwitching gates whether the macro regime can transition
	// away from Normal at all. false pins every path to Normal for its
	// whole horizon (SPEC_FULL.md's "stress-only" and "no regime" scenarios
	// are expressed by this flag plus the probabilities below, not by a
	// separate code path).
	EnableRegimeSwitching bool        `json:"enable_regime_switching"`
	RegimeTransition      [][]float64 `json:"regime_transition,omitempty"` // 3x3, Normal/Stress/Boom order; nil uses DefaultTransitionMatrix
	StressProbability     float64     `json:"stress_probability"`
	BoomProbability       float64     `json:"boom_probability"`
	RegimePersistence     float64     `json:"regime_persistence"`

	// EnableRiskEvents gates whether any risk event can ever arrive. false
	// yields an empty risk manager regardless of RiskEvents.
	EnableRiskEvents bool               `json:"enable_risk_events"`
	RiskEvents       []RiskEventRequest `json:"risk_events,omitempty"` // nil/empty with EnableRiskEvents=true uses DefaultRiskConfigs
}

// Validate checks the numeric sanity of a RunRequest before it is built
// into live model objects, so malformed input fails fast with a typed error
// rather than surfacing as a NaN deep in a simulated path.
func (r RunRequest) Validate() error {
	if r.NumPaths <= 0 {
		return &errs.InvalidParameter{Field: "num_paths", Reason: "must be positive"}
	}
	if r.InitialCapital <= 0 {
		return &errs.InvalidParameter{Field: "initial_capital", Reason: "must be positive"}
	}
	if r.HorizonMonths <= 0 {
		return &errs.InvalidParameter{Field: "horizon_months", Reason: "must be positive"}
	}
	if r.DevMonths < 0 || r.DevMonths > r.HorizonMonths {
		return &errs.InvalidParameter{Field: "dev_months", Reason: "must be between 0 and horizon_months"}
	}
	if r.LeadsPerMonth < 0 {
		return &errs.InvalidParameter{Field: "leads_per_month", Reason: "must be non-negative"}
	}
	for _, p := range []struct {
		field string
		value float64
	}{
		{"win_rate_bumn", r.WinRateBUMN},
		{"win_rate_open", r.WinRateOpen},
		{"bumn_ratio", r.BUMNRatio},
		{"annual_churn_rate", r.AnnualChurnRate},
	} {
		if p.value < 0 || p.value > 1 {
			return &errs.InvalidParameter{Field: p.field, Reason: "must be in [0, 1]"}
		}
	}
	for i, ev := range r.RiskEvents {
		if ev.AnnualProbability < 0 {
			return &errs.InvalidParameter{Field: "risk_events.annual_probability", Reason: "must be non-negative"}
		}
		if ev.RecoveryRate < 0 || ev.RecoveryRate > 1 {
			return &errs.InvalidParameter{Field: "risk_events.recovery_rate", Reason: "must be in [0, 1]"}
		}
		switch ev.Channel {
		case risk.ChannelAdoption, risk.ChannelChurn, risk.ChannelRevenue, risk.ChannelCost:
		default:
			return &errs.InvalidParameter{Field: "risk_events.channel", Reason: "must be one of adoption, churn, revenue, cost"}
		}
		if ev.Severity[0] > ev.Severity[1] || ev.Severity[1] > ev.Severity[2] {
			return &errs.InvalidParameter{Field: "risk_events.severity", Reason: "must satisfy min <= mode <= max"}
		}
		_ = i
	}
	return nil
}

// Built is the fully constructed set of models a RunRequest compiles into.
type Built struct {
	Business    *business.Model
	Regime      *processes.RegimeSwitchingModel
	RiskConfigs []*risk.EventConfig
	PathConfig  simulate.Config
}

// Build turns a validated RunRequest into live domain objects. Callers must
// call Validate first; Build does not re-check numeric ranges.
func Build(r RunRequest) (*Built, error) {
	mkTriangular := func(t [3]float64) (distributions.Distribution, error) {
		return distributions.NewTriangular(t[0], t[1], t[2])
	}

	small, err := mkTriangular(r.ContractSmall)
	if err != nil {
		return nil, err
	}
	medium, err := mkTriangular(r.ContractMedium)
	if err != nil {
		return nil, err
	}
	large, err := mkTriangular(r.ContractLarge)
	if err != nil {
		return nil, err
	}
	cycle, err := mkTriangular(r.SalesCycle)
	if err != nil {
		return nil, err
	}

	model := business.NewModel(
		map[business.SizeBucket]distributions.Distribution{
			business.SizeSmall:  small,
			business.SizeMedium: medium,
			business.SizeLarge:  large,
		},
		map[business.SizeBucket]float64{
			business.SizeSmall:  r.SizeWeightSmall,
			business.SizeMedium: r.SizeWeightMedium,
			business.SizeLarge:  r.SizeWeightLarge,
		},
		cycle, r.OpOverhead, r.CostPerCustomer,
	)

	transition := r.RegimeTransition
	if !r.EnableRegimeSwitching {
		transition = [][]float64{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}}
	} else if transition == nil {
		transition = processes.DefaultTransitionMatrix(r.StressProbability, r.BoomProbability, r.RegimePersistence)
	}
	regime, err := processes.NewRegimeSwitchingModel(processes.DefaultRegimeOrder, transition, processes.RegimeNormal, processes.DefaultRegimeMultipliers)
	if err != nil {
		return nil, err
	}

	var riskConfigs []*risk.EventConfig
	if r.EnableRiskEvents {
		if len(r.RiskEvents) == 0 {
			riskConfigs = DefaultRiskConfigs()
		} else {
			riskConfigs, err = buildRiskConfigs(r.RiskEvents)
			if err != nil {
				return nil, err
			}
		}
	}

	return &Built{
		Business:    model,
		Regime:      regime,
		RiskConfigs: riskConfigs,
		PathConfig: simulate.Config{
			InitialCapital:  r.InitialCapital,
			DevMonths:       r.DevMonths,
			DevBurn:         r.DevBurn,
			Horizon:         r.HorizonMonths,
			LeadsPerMonth:   r.LeadsPerMonth,
			WinRateBUMN:     r.WinRateBUMN,
			WinRateOpen:     r.WinRateOpen,
			BUMNRatio:       r.BUMNRatio,
			AnnualChurnRate: r.AnnualChurnRate,
		},
	}, nil
}

func buildRiskConfigs(reqs []RiskEventRequest) ([]*risk.EventConfig, error) {
	out := make([]*risk.EventConfig, 0, len(reqs))
	for _, ev := range reqs {
		severity, err := distributions.NewTriangular(ev.Severity[0], ev.Severity[1], ev.Severity[2])
		if err != nil {
			return nil, err
		}
		out = append(out, &risk.EventConfig{
			Type:              ev.Type,
			AnnualProbability: ev.AnnualProbability,
			Channel:           ev.Channel,
			Severity:          severity,
			RecoveryRate:      ev.RecoveryRate,
			StartMonth:        ev.StartMonth,
			EndMonth:          ev.EndMonth,
		})
	}
	return out, nil
}

// DefaultRiskConfigs returns the three named risk-event types this model
// considers when a caller enables risk events without supplying its own
// list: a regulatory shock (cost), a competitive shock (revenue), and a
// macro downturn (churn).
func DefaultRiskConfigs() []*risk.EventConfig {
	regulatorySeverity, _ := distributions.NewTriangular(0.2, 0.4, 0.8)
	competitiveSeverity, _ := distributions.NewTriangular(0.1, 0.3, 0.6)
	macroSeverity, _ := distributions.NewTriangular(0.3, 0.5, 0.9)

	return []*risk.EventConfig{
		{
			Type:              "regulatory",
			AnnualProbability: 0.08,
			Channel:           risk.ChannelCost,
			Severity:          regulatorySeverity,
			RecoveryRate:      0.25,
		},
		{
			Type:              "competitive",
			AnnualProbability: 0.15,
			Channel:           risk.ChannelRevenue,
			Severity:          competitiveSeverity,
			RecoveryRate:      0.15,
		},
		{
			Type:              "macro",
			AnnualProbability: 0.05,
			Channel:           risk.ChannelChurn,
			Severity:          macroSeverity,
			RecoveryRate:      0.1,
		},
	}
}

// Preset is a named, ready-to-run RunRequest bundle.
type Preset struct {
	Name        string
	Description string
	Request     RunRequest
}

func baseRequest() RunRequest {
	return RunRequest{
		Seed:              0,
		NumPaths:          2000,
		InitialCapital:    2_000_000,
		DevMonths:         6,
		DevBurn:           150_000,
		HorizonMonths:     60,
		LeadsPerMonth:     25,
		WinRateBUMN:       0.25,
		WinRateOpen:       0.12,
		BUMNRatio:         0.3,
		AnnualChurnRate:   0.15,
		ContractSmall:     [3]float64{30_000, 60_000, 100_000},
		ContractMedium:    [3]float64{100_000, 200_000, 350_000},
		ContractLarge:     [3]float64{350_000, 600_000, 1_200_000},
		SizeWeightSmall:   0.55,
		SizeWeightMedium:  0.32,
		SizeWeightLarge:   0.13,
		SalesCycle:        [3]float64{1, 3, 8},
		OpOverhead:        60_000,
		CostPerCustomer:   800,
		EnableRegimeSwitching: true,
		StressProbability: 0.2,
		BoomProbability:   0.15,
		RegimePersistence: 0.85,
		EnableRiskEvents:  true,
	}
}

// Presets returns the named scenario bundles: base, conservative, and
// aggressive, each scaled off the same baseline.
func Presets() []Preset {
	base := baseRequest()

	conservative := base
	conservative.LeadsPerMonth *= 0.7
	conservative.WinRateBUMN *= 0.8
	conservative.WinRateOpen *= 0.8
	conservative.AnnualChurnRate *= 1.25
	conservative.RegimePersistence = 0.8
	conservative.StressProbability = 0.3

	aggressive := base
	aggressive.LeadsPerMonth *= 1.4
	aggressive.WinRateBUMN *= 1.15
	aggressive.WinRateOpen *= 1.15
	aggressive.DevBurn *= 1.3
	aggressive.BoomProbability = 0.25

	return []Preset{
		{Name: "base", Description: "Central estimate across all parameters", Request: base},
		{Name: "conservative", Description: "Slower growth, higher churn, more stress risk", Request: conservative},
		{Name: "aggressive", Description: "Faster growth funded by higher dev burn", Request: aggressive},
	}
}
