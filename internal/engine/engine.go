// Package engine runs the Monte Carlo simulation across many independent
// paths in parallel and aggregates the results into decision-support
// analytics.
package engine

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/pijarcapital/expansion-dss/internal/business"
	"github.com/pijarcapital/expansion-dss/internal/mathx"
	"github.com/pijarcapital/expansion-dss/internal/processes"
	"github.com/pijarcapital/expansion-dss/internal/risk"
	"github.com/pijarcapital/expansion-dss/internal/rng"
	"github.com/pijarcapital/expansion-dss/internal/simulate"
)

// Request bundles everything needed to run a full Monte Carlo batch.
type Request struct {
	Business    *business.Model
	Regime      *processes.RegimeSwitchingModel
	RiskConfigs []*risk.EventConfig
	PathConfig  simulate.Config
	NumPaths    int
	Seed        int64
	// Serial forces single-goroutine execution, used for bit-identical
	// debugging against the parallel path (see DESIGN.md).
	Serial bool
}

// SummaryStats holds the scalar aggregate statistics of one batch.
type SummaryStats struct {
	MeanFinalCapital   float64
	StdFinalCapital    float64
	MedianFinalCapital float64
	MeanReturn         float64 // percent, (final/initial - 1) * 100
	RuinProbability    float64
	MeanRuinMonth      *float64 `json:"mean_ruin_month,omitempty"` // nil if no path in the batch ruined
	BreakevenRate      float64  // fraction of paths reaching breakeven
	MeanBreakevenMonth *float64 `json:"mean_breakeven_month,omitempty"` // nil if no path broke even
	MeanMaxDrawdown    float64
	ProbProfit         float64 // fraction of paths with total_return > 0
}

// HistogramBucket is one bin of the return histogram: a half-open
// percentage-point range [RangeLow, RangeHigh) and the count of paths
// whose return fell in it. The last bin also counts a return equal to its
// RangeHigh.
type HistogramBucket struct {
	RangeLow  float64
	RangeHigh float64
	Count     int
}

// Results is the full output of one Monte Carlo batch.
type Results struct {
	Paths           []*simulate.Result
	Summary         SummaryStats
	CapitalBands    PercentileBand // capital percentile bands over time
	CustomerBands   PercentileBand
	SamplePaths     []*simulate.Result // 50 representative paths, sorted by return
	OutcomeBuckets  map[string]int     // double_plus/profitable/loss_no_ruin/ruin counts
	ReturnHistogram []HistogramBucket
	Recommendation  string
}

// PercentileBand is a per-month p5/p25/p50/p75/p95 envelope across all paths.
type PercentileBand struct {
	P5  []float64
	P25 []float64
	P50 []float64
	P75 []float64
	P95 []float64
}

const sampleCap = 50

// Run executes NumPaths independent simulations using a worker pool sized
// to runtime.NumCPU(), aggregates the results, and returns them. ctx is
// checked once before the batch starts; simulation itself is CPU-bound and
// not interruptible mid-path.
func Run(ctx context.Context, req Request) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.NumPaths <= 0 {
		return nil, fmt.Errorf("engine: NumPaths must be positive, got %d", req.NumPaths)
	}

	root := rng.NewStream(req.Seed)
	streams := root.Spawn(req.NumPaths)
	results := make([]*simulate.Result, req.NumPaths)
	errs := make([]error, req.NumPaths)

	run := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				errs[i] = fmt.Errorf("engine: path %d panicked: %v", i, r)
			}
		}()
		mgr := risk.NewManager(req.RiskConfigs)
		sim := simulate.New(req.Business, req.Regime, mgr, req.PathConfig)
		results[i] = sim.Run(streams[i])
	}

	if req.Serial {
		for i := 0; i < req.NumPaths; i++ {
			run(i)
		}
	} else {
		workers := runtime.NumCPU()
		if workers > req.NumPaths {
			workers = req.NumPaths
		}
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					run(i)
				}
			}()
		}
		for i := 0; i < req.NumPaths; i++ {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return aggregate(req, results), nil
}

func aggregate(req Request, paths []*simulate.Result) *Results {
	n := len(paths)
	initial := req.PathConfig.InitialCapital
	finals := make([]float64, n)
	returns := make([]float64, n)
	ruinMonths := []float64{}
	breakevenMonths := []float64{}
	drawdowns := make([]float64, n)
	ruinCount := 0
	breakevenCount := 0
	profitCount := 0
	buckets := map[string]int{"double_plus": 0, "profitable": 0, "loss_no_ruin": 0, "ruin": 0}

	for i, p := range paths {
		final := p.CapitalPath[len(p.CapitalPath)-1]
		finals[i] = final
		ret := mathx.ReturnPct(final, initial)
		returns[i] = ret
		drawdowns[i] = p.MaxDrawdown
		isRuin := p.RuinMonth != -1

		if isRuin {
			ruinCount++
			ruinMonths = append(ruinMonths, float64(p.RuinMonth))
		}
		if p.BreakevenMonth != -1 {
			breakevenCount++
			breakevenMonths = append(breakevenMonths, float64(p.BreakevenMonth))
		}
		if ret > 0 {
			profitCount++
		}

		// Outcome buckets partition on the ruin flag and then on realized
		// return, independent of the breakeven bookkeeping above (a path can be profitable without
		// ever recording a breakeven month, e.g. one that never leaves
		// development — see SPEC_FULL.md Open Question 2).
		switch {
		case isRuin:
			buckets["ruin"]++
		case ret >= 100:
			buckets["double_plus"]++
		case ret > 0:
			buckets["profitable"]++
		default:
			buckets["loss_no_ruin"]++
		}
	}

	summary := SummaryStats{
		MeanFinalCapital:   mathx.Mean(finals),
		StdFinalCapital:    mathx.Std(finals),
		MedianFinalCapital: mathx.Percentile(finals, 50),
		MeanReturn:         mathx.Mean(returns),
		RuinProbability:    float64(ruinCount) / float64(n),
		BreakevenRate:      float64(breakevenCount) / float64(n),
		MeanMaxDrawdown:    mathx.Mean(drawdowns),
		ProbProfit:         float64(profitCount) / float64(n),
	}
	if len(ruinMonths) > 0 {
		v := mathx.Mean(ruinMonths)
		summary.MeanRuinMonth = &v
	}
	if len(breakevenMonths) > 0 {
		v := mathx.Mean(breakevenMonths)
		summary.MeanBreakevenMonth = &v
	}

	horizon := req.PathConfig.Horizon
	capitalBands := bandCapital(paths, horizon)
	customerBands := bandCustomers(paths, horizon)

	return &Results{
		Paths:           paths,
		Summary:         summary,
		CapitalBands:    capitalBands,
		CustomerBands:   customerBands,
		SamplePaths:     samplePaths(paths, returns),
		OutcomeBuckets:  buckets,
		ReturnHistogram: returnHistogram(returns),
		Recommendation:  recommend(summary),
	}
}

// samplePaths sorts paths by total return and returns up to sampleCap
// equispaced representatives spanning the full return distribution.
func samplePaths(paths []*simulate.Result, returns []float64) []*simulate.Result {
	order := make([]int, len(paths))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return returns[order[a]] < returns[order[b]] })

	picks := mathx.EquispacedIndices(len(order), sampleCap)
	out := make([]*simulate.Result, len(picks))
	for i, rank := range picks {
		out[i] = paths[order[rank]]
	}
	return out
}

// returnHistogram bins returns into 50-percentage-point buckets spanning
// [floor(min/50)*50, ceil(max/50)*50].
func returnHistogram(returns []float64) []HistogramBucket {
	if len(returns) == 0 {
		return nil
	}
	minR, maxR := returns[0], returns[0]
	for _, r := range returns {
		if r < minR {
			minR = r
		}
		if r > maxR {
			maxR = r
		}
	}
	low := math.Floor(minR/50) * 50
	high := math.Ceil(maxR/50) * 50
	if high <= low {
		high = low + 50
	}
	count := int(math.Round((high - low) / 50))
	buckets := make([]HistogramBucket, count)
	for i := range buckets {
		buckets[i] = HistogramBucket{RangeLow: low + float64(i)*50, RangeHigh: low + float64(i+1)*50}
	}
	for _, r := range returns {
		idx := int((r - low) / 50)
		if idx < 0 {
			idx = 0
		}
		if idx >= count {
			idx = count - 1
		}
		buckets[idx].Count++
	}
	return buckets
}

func bandCapital(paths []*simulate.Result, horizon int) PercentileBand {
	band := newBand(horizon)
	for m := 0; m <= horizon; m++ {
		col := make([]float64, 0, len(paths))
		for _, p := range paths {
			if m < len(p.CapitalPath) {
				col = append(col, p.CapitalPath[m])
			} else {
				col = append(col, p.CapitalPath[len(p.CapitalPath)-1])
			}
		}
		fillBand(&band, m, col)
	}
	return band
}

func bandCustomers(paths []*simulate.Result, horizon int) PercentileBand {
	band := newBand(horizon)
	for m := 0; m <= horizon; m++ {
		col := make([]float64, 0, len(paths))
		for _, p := range paths {
			if m < len(p.CustomerPath) {
				col = append(col, float64(p.CustomerPath[m]))
			} else {
				col = append(col, float64(p.CustomerPath[len(p.CustomerPath)-1]))
			}
		}
		fillBand(&band, m, col)
	}
	return band
}

func newBand(horizon int) PercentileBand {
	return PercentileBand{
		P5:  make([]float64, horizon+1),
		P25: make([]float64, horizon+1),
		P50: make([]float64, horizon+1),
		P75: make([]float64, horizon+1),
		P95: make([]float64, horizon+1),
	}
}

func fillBand(band *PercentileBand, m int, col []float64) {
	band.P5[m] = mathx.Percentile(col, 5)
	band.P25[m] = mathx.Percentile(col, 25)
	band.P50[m] = mathx.Percentile(col, 50)
	band.P75[m] = mathx.Percentile(col, 75)
	band.P95[m] = mathx.Percentile(col, 95)
}

// recommend applies the four-tier rule from SPEC_FULL.md Section 4.7 over
// the batch summary.
func recommend(s SummaryStats) string {
	switch {
	case s.ProbProfit >= 0.80 && s.MeanReturn >= 50 && s.RuinProbability < 0.05:
		return "PROCEED"
	case s.ProbProfit >= 0.60:
		return "CAUTION"
	case s.ProbProfit >= 0.40:
		return "REASSESS"
	default:
		return "DO_NOT_PROCEED"
	}
}
