package simulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pijarcapital/expansion-dss/internal/business"
	"github.com/pijarcapital/expansion-dss/internal/distributions"
	"github.com/pijarcapital/expansion-dss/internal/processes"
	"github.com/pijarcapital/expansion-dss/internal/risk"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

func testModel(t *testing.T) *business.Model {
	t.Helper()
	small := distributions.NewFixed(50_000)
	medium := distributions.NewFixed(150_000)
	large := distributions.NewFixed(500_000)
	cycle, err := distributions.NewTriangular(1, 2, 4)
	require.NoError(t, err)
	return business.NewModel(
		map[business.SizeBucket]distributions.Distribution{
			business.SizeSmall:  small,
			business.SizeMedium: medium,
			business.SizeLarge:  large,
		},
		map[business.SizeBucket]float64{
			business.SizeSmall:  0.6,
			business.SizeMedium: 0.3,
			business.SizeLarge:  0.1,
		},
		cycle,
		20_000, 500,
	)
}

func testRegime(t *testing.T) *processes.RegimeSwitchingModel {
	t.Helper()
	matrix := processes.DefaultTransitionMatrix(0.1, 0.05, 0.9)
	model, err := processes.NewRegimeSwitchingModel(processes.DefaultRegimeOrder, matrix, processes.RegimeNormal, processes.DefaultRegimeMultipliers)
	require.NoError(t, err)
	return model
}

// normalOnlyRegime never leaves RegimeNormal, isolating a test from regime
// randomness so non-regime assertions hold deterministically.
func normalOnlyRegime(t *testing.T) *processes.RegimeSwitchingModel {
	t.Helper()
	matrix := [][]float64{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}}
	model, err := processes.NewRegimeSwitchingModel(processes.DefaultRegimeOrder, matrix, processes.RegimeNormal, processes.DefaultRegimeMultipliers)
	require.NoError(t, err)
	return model
}

func TestRunProducesMonthAlignedPaths(t *testing.T) {
	model := testModel(t)
	regime := testRegime(t)
	mgr := risk.NewManager(nil)
	cfg := Config{
		InitialCapital:  500_000,
		DevMonths:       3,
		DevBurn:         40_000,
		Horizon:         24,
		LeadsPerMonth:   10,
		WinRateBUMN:     0.3,
		WinRateOpen:     0.15,
		BUMNRatio:       0.2,
		AnnualChurnRate: 0.1,
	}
	sim := New(model, regime, mgr, cfg)
	stream := rng.NewStream(7)
	res := sim.Run(stream)

	assert.LessOrEqual(t, len(res.RevenuePath), cfg.Horizon)
	assert.Equal(t, len(res.RevenuePath)+1, len(res.CapitalPath))
	assert.Equal(t, len(res.RevenuePath), len(res.RegimePath))
}

func TestRunStopsOnRuin(t *testing.T) {
	model := testModel(t)
	regime := testRegime(t)
	mgr := risk.NewManager(nil)
	cfg := Config{
		InitialCapital:  1_000,
		DevMonths:       36,
		DevBurn:         500_000,
		Horizon:         12,
		LeadsPerMonth:   1,
		WinRateBUMN:     0.01,
		WinRateOpen:     0.01,
		BUMNRatio:       0.1,
		AnnualChurnRate: 0.1,
	}
	sim := New(model, regime, mgr, cfg)
	stream := rng.NewStream(3)
	res := sim.Run(stream)

	require.GreaterOrEqual(t, res.RuinMonth, 1)
	assert.Equal(t, PhaseRuined, res.FinalPhase)
	assert.LessOrEqual(t, res.CapitalPath[len(res.CapitalPath)-1], 0.0)
}

func TestNoRevenueOrPipelineActivityDuringDevelopment(t *testing.T) {
	model := testModel(t)
	regime := normalOnlyRegime(t)
	mgr := risk.NewManager(nil)
	cfg := Config{
		InitialCapital:  10_000_000,
		DevMonths:       6,
		DevBurn:         40_000,
		Horizon:         6,
		LeadsPerMonth:   100,
		WinRateBUMN:     0.9,
		WinRateOpen:     0.9,
		BUMNRatio:       0.5,
		AnnualChurnRate: 0.01,
	}
	sim := New(model, regime, mgr, cfg)
	stream := rng.NewStream(13)
	res := sim.Run(stream)

	for _, rev := range res.RevenuePath {
		assert.Equal(t, 0.0, rev, "no revenue may accrue during development")
	}
	for i, c := range res.CostPath {
		assert.InDelta(t, cfg.DevBurn, c, 1e-6, "month %d cost should be pure dev burn", i)
	}
	assert.Equal(t, 0, res.CustomerPath[len(res.CustomerPath)-1], "the pipeline must not run during development")
}

func TestRunPopulatesRealizedParams(t *testing.T) {
	model := testModel(t)
	regime := testRegime(t)
	mgr := risk.NewManager(nil)
	cfg := Config{
		InitialCapital:  500_000,
		DevMonths:       3,
		DevBurn:         40_000,
		Horizon:         12,
		LeadsPerMonth:   10,
		WinRateBUMN:     0.3,
		WinRateOpen:     0.15,
		BUMNRatio:       0.2,
		AnnualChurnRate: 0.1,
	}
	sim := New(model, regime, mgr, cfg)
	res := sim.Run(rng.NewStream(9))

	assert.Equal(t, cfg.InitialCapital, res.RealizedParams["initial_capital"])
	assert.Equal(t, float64(cfg.DevMonths), res.RealizedParams["dev_duration"])
	assert.Equal(t, cfg.AnnualChurnRate, res.RealizedParams["annual_churn_rate"])
}

func TestRunRecordsShockTimeline(t *testing.T) {
	model := testModel(t)
	regime := testRegime(t)
	severity, err := distributions.NewTriangular(0.3, 0.5, 0.8)
	require.NoError(t, err)
	cfg := &risk.EventConfig{
		Type:              "macro",
		AnnualProbability: 1200, // near-certain arrival every month
		Channel:           risk.ChannelCost,
		Severity:          severity,
		RecoveryRate:      0.2,
	}
	mgr := risk.NewManager([]*risk.EventConfig{cfg})
	pathCfg := Config{
		InitialCapital:  500_000,
		DevMonths:       0,
		DevBurn:         0,
		Horizon:         6,
		LeadsPerMonth:   5,
		WinRateBUMN:     0.3,
		WinRateOpen:     0.15,
		BUMNRatio:       0.2,
		AnnualChurnRate: 0.1,
	}
	sim := New(model, regime, mgr, pathCfg)
	res := sim.Run(rng.NewStream(17))

	require.NotEmpty(t, res.ShockTimeline)
	for _, ev := range res.ShockTimeline {
		assert.Equal(t, risk.ChannelCost, ev.Channel)
		assert.GreaterOrEqual(t, ev.Month, 1)
	}
}

func TestBreakevenNeverRecordedDuringDevelopment(t *testing.T) {
	model := testModel(t)
	regime := testRegime(t)
	mgr := risk.NewManager(nil)
	cfg := Config{
		InitialCapital:  10,
		DevMonths:       6,
		DevBurn:         0,
		Horizon:         6,
		LeadsPerMonth:   100,
		WinRateBUMN:     0.9,
		WinRateOpen:     0.9,
		BUMNRatio:       0.5,
		AnnualChurnRate: 0.01,
	}
	sim := New(model, regime, mgr, cfg)
	stream := rng.NewStream(11)
	res := sim.Run(stream)
	assert.Equal(t, -1, res.BreakevenMonth)
}
