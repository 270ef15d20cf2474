package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pijarcapital/expansion-dss/internal/distributions"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

func fixedSeverity(v float64) distributions.Distribution {
	return distributions.NewFixed(v)
}

func TestCheckForArrivalsSamplesPoissonArrivals(t *testing.T) {
	cfg := &EventConfig{
		Type:              "regulatory",
		AnnualProbability: 600, // effective monthly rate 50 -> virtually certain multiple arrivals
		Channel:           ChannelCost,
		Severity:          fixedSeverity(0.8),
		RecoveryRate:      0.5,
	}
	m := NewManager([]*EventConfig{cfg})
	stream := rng.NewStream(1)
	arrived := m.CheckForArrivals(1, stream, 1.0)
	require.NotEmpty(t, arrived)
	require.Greater(t, len(m.Active), 1, "high intensity must be able to produce more than one arrival of the same type in a month")
	for _, s := range arrived {
		assert.InDelta(t, 0.8, s.Severity, 1e-9)
	}
}

func TestCheckForArrivalsPreservesFavorableSeverityAboveOne(t *testing.T) {
	cfg := &EventConfig{
		AnnualProbability: 1200,
		Channel:           ChannelRevenue,
		Severity:          fixedSeverity(1.6),
		RecoveryRate:      0.5,
	}
	m := NewManager([]*EventConfig{cfg})
	stream := rng.NewStream(2)
	arrived := m.CheckForArrivals(1, stream, 1.0)
	require.NotEmpty(t, arrived)
	for _, s := range arrived {
		assert.InDelta(t, 1.6, s.Severity, 1e-9, "severity above 1 is the favorable case and must not be clamped")
	}
}

func TestCheckForArrivalsRespectsActivationWindow(t *testing.T) {
	cfg := &EventConfig{
		AnnualProbability: 1200,
		Channel:           ChannelCost,
		Severity:          fixedSeverity(1.2),
		RecoveryRate:      0.5,
		StartMonth:        10,
		EndMonth:          20,
	}
	m := NewManager([]*EventConfig{cfg})
	stream := rng.NewStream(3)
	assert.Empty(t, m.CheckForArrivals(5, stream, 1.0))
	assert.Empty(t, m.CheckForArrivals(21, stream, 1.0))
	assert.NotEmpty(t, m.CheckForArrivals(15, stream, 1.0))
}

func TestProcessRecoveriesFullRecoveryDropsShock(t *testing.T) {
	cfg := &EventConfig{Channel: ChannelRevenue, RecoveryRate: 1.0}
	m := NewManager([]*EventConfig{cfg})
	m.Active = []*ActiveShock{{Config: cfg, Severity: 0.6}}
	stream := rng.NewStream(4)
	m.ProcessRecoveries(stream)
	assert.Empty(t, m.Active)
}

func TestProcessRecoveriesPartialDriftTowardOne(t *testing.T) {
	cfg := &EventConfig{Channel: ChannelRevenue, RecoveryRate: 0.0}
	m := NewManager([]*EventConfig{cfg})
	m.Active = []*ActiveShock{{Config: cfg, Severity: 0.5}}
	stream := rng.NewStream(5)

	m.ProcessRecoveries(stream)
	require.Len(t, m.Active, 1)
	assert.InDelta(t, 0.6, m.Active[0].Severity, 1e-9)

	m.ProcessRecoveries(stream)
	assert.InDelta(t, 0.68, m.Active[0].Severity, 1e-9)
	assert.Less(t, m.Active[0].Severity, 1.0, "drift approaches but never reaches 1.0 without a full recovery draw")
}

func TestGetMultipliersScalesBySeverityDirectly(t *testing.T) {
	cfg := &EventConfig{Channel: ChannelChurn}
	m := NewManager(nil)
	m.Active = []*ActiveShock{{Config: cfg, Severity: 0.5}}
	mult := m.GetMultipliers()
	assert.InDelta(t, 0.5, mult.Churn, 1e-9)
	assert.InDelta(t, 1.0, mult.Adoption, 1e-9)
}

func TestGetMultipliersCompoundAcrossShocksOnSameChannel(t *testing.T) {
	cfgA := &EventConfig{Channel: ChannelCost}
	cfgB := &EventConfig{Channel: ChannelCost}
	m := NewManager(nil)
	m.Active = []*ActiveShock{
		{Config: cfgA, Severity: 1.2},
		{Config: cfgB, Severity: 1.1},
	}
	mult := m.GetMultipliers()
	assert.InDelta(t, 1.2*1.1, mult.Cost, 1e-9)
}

func TestResetClearsActiveShocks(t *testing.T) {
	cfg := &EventConfig{Channel: ChannelCost}
	m := NewManager([]*EventConfig{cfg})
	m.Active = []*ActiveShock{{Config: cfg, Severity: 0.5}}
	m.Reset()
	assert.Empty(t, m.Active)
	assert.Len(t, m.Configs, 1)
}
