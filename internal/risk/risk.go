// Package risk models discrete shock events — regulatory, competitive,
// macroeconomic — that arrive stochastically, distort the business's
// channel multipliers while active, and recover over time.
package risk

import (
	"github.com/pijarcapital/expansion-dss/internal/business"
	"github.com/pijarcapital/expansion-dss/internal/distributions"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

const (
	ChannelAdoption = "adoption"
	ChannelChurn    = "churn"
	ChannelRevenue  = "revenue"
	ChannelCost     = "cost"
)

// EventConfig describes one risk-event type: an annualized arrival
// intensity, the single channel it strikes, a severity distribution on
// [0, 2] (< 1 harmful, > 1 favorable), a per-step recovery probability, and
// an optional activation window in calendar months.
type EventConfig struct {
	Type              string
	AnnualProbability float64 // lambda, arrivals/year
	Channel           string  // one of the Channel* constants
	Severity          distributions.Distribution
	RecoveryRate      float64 // rho, per-step probability of full recovery
	StartMonth        int     // activation window start; 0 = from the beginning
	EndMonth          int     // activation window end; <= 0 = no end
}

func (c *EventConfig) activeAt(month int) bool {
	if month < c.StartMonth {
		return false
	}
	if c.EndMonth > 0 && month > c.EndMonth {
		return false
	}
	return true
}

// ActiveShock is a live instance of an EventConfig: its channel, current
// severity, and the month it arrived.
type ActiveShock struct {
	Config     *EventConfig
	Severity   float64
	StartMonth int
}

// Manager tracks the set of currently active shocks and arrivals over time.
type Manager struct {
	Configs []*EventConfig
	Active  []*ActiveShock
}

// NewManager constructs a Manager with no active shocks.
func NewManager(configs []*EventConfig) *Manager {
	return &Manager{Configs: configs}
}

// Reset clears all active shocks, leaving the configuration untouched. Used
// to reuse a Manager across independent simulation paths without reallocating.
func (m *Manager) Reset() {
	m.Active = nil
}

// CheckForArrivals samples, for each configured event type active at month,
// N ~ Poisson(annual_probability/12 * regimeRiskMult) arrivals; each arrival
// draws a fresh severity from the event's distribution (unclamped — values
// above 1 are the "favorable" case the distribution is explicitly shaped to
// produce) and is appended as a new ActiveShock. A shock type already active
// can arrive again in the same month and stacks as a second entry; same-type
// shocks are never merged.
func (m *Manager) CheckForArrivals(month int, stream *rng.Stream, regimeRiskMult float64) []*ActiveShock {
	var arrived []*ActiveShock
	for _, cfg := range m.Configs {
		if !cfg.activeAt(month) {
			continue
		}
		effectiveRate := cfg.AnnualProbability / 12 * regimeRiskMult
		if effectiveRate < 0 {
			effectiveRate = 0
		}
		n := stream.Poisson(effectiveRate)
		for i := 0; i < n; i++ {
			severity := cfg.Severity.Sample(1, stream)[0]
			shock := &ActiveShock{Config: cfg, Severity: severity, StartMonth: month}
			m.Active = append(m.Active, shock)
			arrived = append(arrived, shock)
		}
	}
	return arrived
}

// ProcessRecoveries rolls a Bernoulli(rho) trial per active shock: on
// success the shock fully recovers and is dropped; otherwise its severity
// drifts toward 1.0 by the fixed fraction 0.2 of the remaining distance.
// This drift never reaches 1.0 without a full-recovery draw, so a shock can
// linger indefinitely at a near-equilibrium severity (see DESIGN.md, Open
// Question 4).
func (m *Manager) ProcessRecoveries(stream *rng.Stream) {
	remaining := m.Active[:0:0]
	for _, s := range m.Active {
		if stream.Bernoulli(s.Config.RecoveryRate) {
			continue
		}
		s.Severity += 0.2 * (1 - s.Severity)
		remaining = append(remaining, s)
	}
	m.Active = remaining
}

// GetMultipliers returns, for each channel, the product of the current
// severities of every active shock striking that channel (1.0 if none).
func (m *Manager) GetMultipliers() business.ChannelMultipliers {
	mult := business.Neutral
	for _, s := range m.Active {
		switch s.Config.Channel {
		case ChannelAdoption:
			mult.Adoption *= s.Severity
		case ChannelChurn:
			mult.Churn *= s.Severity
		case ChannelRevenue:
			mult.Revenue *= s.Severity
		case ChannelCost:
			mult.Cost *= s.Severity
		}
	}
	return mult
}
