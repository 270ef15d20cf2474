package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pijarcapital/expansion-dss/internal/business"
	"github.com/pijarcapital/expansion-dss/internal/distributions"
	"github.com/pijarcapital/expansion-dss/internal/processes"
	"github.com/pijarcapital/expansion-dss/internal/risk"
	"github.com/pijarcapital/expansion-dss/internal/simulate"
)

func testRequest(t *testing.T, numPaths int, serial bool) Request {
	t.Helper()
	small := distributions.NewFixed(50_000)
	medium := distributions.NewFixed(150_000)
	large := distributions.NewFixed(500_000)
	cycle, err := distributions.NewTriangular(1, 2, 4)
	require.NoError(t, err)
	model := business.NewModel(
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
	matrix := processes.DefaultTransitionMatrix(0.1, 0.05, 0.9)
	regime, err := processes.NewRegimeSwitchingModel(processes.DefaultRegimeOrder, matrix, processes.RegimeNormal, processes.DefaultRegimeMultipliers)
	require.NoError(t, err)

	severity, err := distributions.NewTriangular(0.1, 0.3, 0.7)
	require.NoError(t, err)
	riskConfigs := []*risk.EventConfig{
		{
			Type:              "regulatory",
			AnnualProbability: 0.1,
			Channel:           risk.ChannelCost,
			Severity:          severity,
			RecoveryRate:      0.2,
		},
	}

	return Request{
		Business:    model,
		Regime:      regime,
		RiskConfigs: riskConfigs,
		PathConfig: simulate.Config{
			InitialCapital:  500_000,
			DevMonths:       3,
			DevBurn:         40_000,
			Horizon:         24,
			LeadsPerMonth:   10,
			WinRateBUMN:     0.3,
			WinRateOpen:     0.15,
			BUMNRatio:       0.2,
			AnnualChurnRate: 0.1,
		},
		NumPaths: numPaths,
		Seed:     42,
		Serial:   serial,
	}
}

func TestRunAggregatesAllPaths(t *testing.T) {
	req := testRequest(t, 200, false)
	res, err := Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, res.Paths, 200)
	assert.GreaterOrEqual(t, res.Summary.RuinProbability, 0.0)
	assert.LessOrEqual(t, res.Summary.RuinProbability, 1.0)
	assert.LessOrEqual(t, len(res.SamplePaths), sampleCap)
	assert.Contains(t, []string{"PROCEED", "CAUTION", "REASSESS", "DO_NOT_PROCEED"}, res.Recommendation)
}

func TestRunSerialMatchesParallelCount(t *testing.T) {
	parallelReq := testRequest(t, 64, false)
	serialReq := testRequest(t, 64, true)

	parallel, err := Run(context.Background(), parallelReq)
	require.NoError(t, err)
	serial, err := Run(context.Background(), serialReq)
	require.NoError(t, err)

	assert.Equal(t, len(parallel.Paths), len(serial.Paths))
	// Same seed, same per-path sub-streams: serial and parallel execution
	// must reach identical final capital for every path since the worker
	// pool never reorders which stream a given path index consumes.
	for i := range parallel.Paths {
		assert.InDelta(t,
			serial.Paths[i].CapitalPath[len(serial.Paths[i].CapitalPath)-1],
			parallel.Paths[i].CapitalPath[len(parallel.Paths[i].CapitalPath)-1],
			1e-6,
		)
	}
}

func TestRunRejectsNonPositivePaths(t *testing.T) {
	req := testRequest(t, 0, false)
	_, err := Run(context.Background(), req)
	assert.Error(t, err)
}

func TestRunRespectsCanceledContext(t *testing.T) {
	req := testRequest(t, 10, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, req)
	assert.Error(t, err)
}
