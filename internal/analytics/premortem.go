package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/pijarcapital/expansion-dss/internal/engine"
	"github.com/pijarcapital/expansion-dss/internal/errs"
	"github.com/pijarcapital/expansion-dss/internal/mathx"
	"github.com/pijarcapital/expansion-dss/internal/processes"
	"github.com/pijarcapital/expansion-dss/internal/simulate"
)

// defaultFailureReturnThreshold is theta in SPEC_FULL.md Section 4.10's
// failure definition: ruin OR total_return <= theta, expressed in percent
// (-20 means a 20% loss).
const defaultFailureReturnThreshold = -20.0

// Trajectory classifies the shape of a failed path's capital curve.
type Trajectory string

const (
	TrajectorySuddenCollapse  Trajectory = "sudden_collapse"
	TrajectoryRecoveryFailure Trajectory = "recovery_failure"
	TrajectorySlowBleed       Trajectory = "slow_bleed"
)

// CauseAttribution is one realized parameter's contribution to the
// difference between failed and successful paths.
type CauseAttribution struct {
	Param            string
	CohensD          float64
	WelchPValue      float64
	AttributionScore float64 // min(1, |CohensD|/2)
	Direction        string  // "higher", "lower", or "similar"
	FailedMean       float64
	SuccessfulMean   float64
	PctDelta         float64 // (failed-success)/|success|*100
}

// InteractionPair reports how often two top causes are simultaneously on
// their "bad side" of the population mean across failed paths.
type InteractionPair struct {
	ParamA, ParamB string
	CoOccurrence   float64 // fraction of failed paths where both are on their bad side
}

// CriticalPeriod is a 3-month window whose failure concentration exceeds
// 1.5x the mean per-month failure rate.
type CriticalPeriod struct {
	StartMonth         int
	EndMonth           int // inclusive
	HazardRate         float64 // mean failures/month within the window
	CumulativeFraction float64 // fraction of all failures falling in this window
	DominantCause      string  // top cause with the largest standardized deviation in-window
}

// TimingAnalysis locates non-overlapping critical periods across the
// failure-month histogram.
type TimingAnalysis struct {
	FailureMonthHistogram []int // count of failures whose failure month falls in bucket t, t=0..horizon
	MeanFailureRate       float64
	CriticalPeriods       []CriticalPeriod
}

// RegimeImpact reports, for one regime, the conditional failure rate among
// paths with high exposure to it (time-in-regime above the population 75th
// percentile) versus the batch baseline.
type RegimeImpact struct {
	Regime         processes.Regime
	FailureRate    float64
	RiskMultiplier float64 // FailureRate / overall failure rate
}

// PreMortem is the full output of SPEC_FULL.md Section 4.10: a cause
// attribution ranking, interaction effects among the top causes, timing
// analysis, trajectory classification, and regime risk multipliers,
// rendered into a short set of templated insights.
type PreMortem struct {
	FailureThreshold float64
	FailedCount      int
	TotalCount       int
	FailureRate      float64

	TopCauses    []CauseAttribution // top 5 by AttributionScore descending
	Interactions []InteractionPair

	Timing TimingAnalysis

	TrajectoryCounts map[Trajectory]int

	RegimeImpacts []RegimeImpact

	Insights []string
}

// ComputePreMortem runs the spec'd failure analysis over a batch. theta is
// the failure return threshold in percent; pass defaultFailureReturnThreshold
// for the spec default of -20.
func ComputePreMortem(results *engine.Results, theta float64) (*PreMortem, error) {
	paths := results.Paths
	n := len(paths)
	if n == 0 {
		return nil, &errs.EmptyCorpus{Analysis: "premortem"}
	}

	maxHorizon := 0
	for _, p := range paths {
		if len(p.CapitalPath)-1 > maxHorizon {
			maxHorizon = len(p.CapitalPath) - 1
		}
	}

	initialCapital := paths[0].CapitalPath[0]

	var failedIdx, successIdx []int
	for i, p := range paths {
		final := p.CapitalPath[len(p.CapitalPath)-1]
		ret := mathx.ReturnPct(final, initialCapital)
		if p.RuinMonth != -1 || ret <= theta {
			failedIdx = append(failedIdx, i)
		} else {
			successIdx = append(successIdx, i)
		}
	}

	causes := causeAttribution(paths, failedIdx, successIdx)
	topCauses := causes
	if len(topCauses) > 5 {
		topCauses = topCauses[:5]
	}
	popMeans := populationMeans(paths)
	interactions := interactionPairs(paths, failedIdx, topCauses, popMeans)
	timing := timingAnalysis(paths, failedIdx, maxHorizon, topCauses, popMeans)
	trajectories := classifyTrajectories(paths, failedIdx, initialCapital)
	regimeImpacts := regimeImpact(paths, failedIdx)

	failureRate := float64(len(failedIdx)) / float64(n)

	pm := &PreMortem{
		FailureThreshold: theta,
		FailedCount:      len(failedIdx),
		TotalCount:       n,
		FailureRate:      failureRate,
		TopCauses:        topCauses,
		Interactions:     interactions,
		Timing:           timing,
		TrajectoryCounts: trajectories,
		RegimeImpacts:    regimeImpacts,
	}
	pm.Insights = buildInsights(pm)
	return pm, nil
}

func causeAttribution(paths []*simulate.Result, failedIdx, successIdx []int) []CauseAttribution {
	names := map[string]bool{}
	for _, p := range paths {
		for k := range p.RealizedParams {
			names[k] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var out []CauseAttribution
	for _, name := range sorted {
		failedVals := valuesAt(paths, failedIdx, name)
		successVals := valuesAt(paths, successIdx, name)
		if len(failedVals) < 2 || len(successVals) < 2 {
			continue
		}
		d, p := welchCohensD(failedVals, successVals)
		score := math.Abs(d) / 2
		if score > 1 {
			score = 1
		}
		direction := "similar"
		if d > 0.1 {
			direction = "higher"
		} else if d < -0.1 {
			direction = "lower"
		}
		failedMean := mathx.Mean(failedVals)
		successMean := mathx.Mean(successVals)
		pctDelta := 0.0
		if successMean != 0 {
			pctDelta = (failedMean - successMean) / math.Abs(successMean) * 100
		}
		out = append(out, CauseAttribution{
			Param:            name,
			CohensD:          d,
			WelchPValue:      p,
			AttributionScore: score,
			Direction:        direction,
			FailedMean:       failedMean,
			SuccessfulMean:   successMean,
			PctDelta:         pctDelta,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AttributionScore > out[j].AttributionScore })
	return out
}

func valuesAt(paths []*simulate.Result, idx []int, name string) []float64 {
	out := make([]float64, 0, len(idx))
	for _, i := range idx {
		if v, ok := paths[i].RealizedParams[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

func populationMeans(paths []*simulate.Result) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, p := range paths {
		for k, v := range p.RealizedParams {
			sums[k] += v
			counts[k]++
		}
	}
	out := make(map[string]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}

// welchCohensD returns Cohen's d (using the pooled standard deviation
// convention) and the two-sided Welch t-test p-value for a-vs-b.
func welchCohensD(a, b []float64) (d float64, pValue float64) {
	meanA, meanB := mathx.Mean(a), mathx.Mean(b)
	varA, varB := mathx.Variance(a), mathx.Variance(b)
	na, nb := float64(len(a)), float64(len(b))

	pooledStd := math.Sqrt((varA + varB) / 2)
	if pooledStd > 0 {
		d = (meanA - meanB) / pooledStd
	}

	se := math.Sqrt(varA/na + varB/nb)
	if se <= 0 {
		return d, 1
	}
	t := (meanA - meanB) / se

	// Welch-Satterthwaite degrees of freedom.
	num := (varA/na + varB/nb) * (varA/na + varB/nb)
	den := (varA*varA)/(na*na*(na-1)) + (varB*varB)/(nb*nb*(nb-1))
	df := num
	if den > 0 {
		df = num / den
	}
	if df < 1 {
		df = 1
	}

	pValue = studentTTwoSided(t, df)
	return d, pValue
}

// interactionPairs reports, for every pair among the top causes, the
// fraction of failed paths where both parameters sit on their own cause's
// "bad side" of the population mean (above it for a "higher" cause, below
// it for a "lower" cause). Causes classified "similar" have no defined bad
// side and are excluded from pairing. Only pairs with a co-occurrence rate
// of at least 0.5 are kept.
func interactionPairs(paths []*simulate.Result, failedIdx []int, topCauses []CauseAttribution, popMeans map[string]float64) []InteractionPair {
	var directional []CauseAttribution
	for _, c := range topCauses {
		if c.Direction != "similar" {
			directional = append(directional, c)
		}
	}

	var pairs []InteractionPair
	for i := 0; i < len(directional); i++ {
		for j := i + 1; j < len(directional); j++ {
			a, b := directional[i], directional[j]
			both := 0
			for _, idx := range failedIdx {
				va, okA := paths[idx].RealizedParams[a.Param]
				vb, okB := paths[idx].RealizedParams[b.Param]
				if !okA || !okB {
					continue
				}
				if onBadSide(va, popMeans[a.Param], a.Direction) && onBadSide(vb, popMeans[b.Param], b.Direction) {
					both++
				}
			}
			rate := 0.0
			if len(failedIdx) > 0 {
				rate = float64(both) / float64(len(failedIdx))
			}
			if rate >= 0.5 {
				pairs = append(pairs, InteractionPair{ParamA: a.Param, ParamB: b.Param, CoOccurrence: rate})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].CoOccurrence > pairs[j].CoOccurrence })
	if len(pairs) > 5 {
		pairs = pairs[:5]
	}
	return pairs
}

func onBadSide(value, popMean float64, direction string) bool {
	if direction == "higher" {
		return value > popMean
	}
	return value < popMean
}

// timingAnalysis builds the failure-month histogram and scans it with a
// 3-month sliding window, reporting every window whose mean per-month
// failure count exceeds 1.5x the overall mean, advancing past each
// reported window so periods never overlap.
func timingAnalysis(paths []*simulate.Result, failedIdx []int, maxHorizon int, topCauses []CauseAttribution, popMeans map[string]float64) TimingAnalysis {
	hist := make([]int, maxHorizon+1)
	total := 0
	for _, i := range failedIdx {
		p := paths[i]
		month := maxHorizon
		if p.RuinMonth != -1 {
			month = p.RuinMonth
		}
		if month > maxHorizon {
			month = maxHorizon
		}
		hist[month]++
		total++
	}

	meanRate := mathx.Mean(intsToFloats(hist))

	var periods []CriticalPeriod
	start := 0
	for start+2 <= maxHorizon {
		windowSum := hist[start] + hist[start+1] + hist[start+2]
		windowRate := float64(windowSum) / 3
		if meanRate > 0 && windowRate > 1.5*meanRate {
			cumFrac := 0.0
			if total > 0 {
				cumFrac = float64(windowSum) / float64(total)
			}
			periods = append(periods, CriticalPeriod{
				StartMonth:         start,
				EndMonth:           start + 2,
				HazardRate:         windowRate,
				CumulativeFraction: cumFrac,
				DominantCause:      dominantCauseInWindow(paths, failedIdx, start, start+2, topCauses, popMeans),
			})
			start += 3
			continue
		}
		start++
	}

	return TimingAnalysis{
		FailureMonthHistogram: hist,
		MeanFailureRate:       meanRate,
		CriticalPeriods:       periods,
	}
}

func intsToFloats(data []int) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out
}

// dominantCauseInWindow finds, among topCauses, the parameter whose values
// on paths failing within [start,end] deviate most (in standardized units)
// from its population mean.
func dominantCauseInWindow(paths []*simulate.Result, failedIdx []int, start, end int, topCauses []CauseAttribution, popMeans map[string]float64) string {
	var inWindow []int
	for _, i := range failedIdx {
		p := paths[i]
		month := len(p.CapitalPath) - 1
		if p.RuinMonth != -1 {
			month = p.RuinMonth
		}
		if month >= start && month <= end {
			inWindow = append(inWindow, i)
		}
	}
	if len(inWindow) == 0 || len(topCauses) == 0 {
		return ""
	}

	best := ""
	bestZ := -1.0
	for _, c := range topCauses {
		vals := valuesAt(paths, inWindow, c.Param)
		if len(vals) == 0 {
			continue
		}
		std := mathx.Std(vals)
		if std == 0 {
			continue
		}
		z := math.Abs((mathx.Mean(vals) - popMeans[c.Param]) / std)
		if z > bestZ {
			bestZ = z
			best = c.Param
		}
	}
	return best
}

func classifyTrajectories(paths []*simulate.Result, failedIdx []int, initialCapital float64) map[Trajectory]int {
	counts := map[Trajectory]int{
		TrajectorySuddenCollapse:  0,
		TrajectoryRecoveryFailure: 0,
		TrajectorySlowBleed:       0,
	}
	for _, i := range failedIdx {
		p := paths[i]
		counts[classifyOne(p, initialCapital)]++
	}
	return counts
}

// classifyOne follows SPEC_FULL.md's exact rule: let peak be the maximum of
// the capital curve and peakMonth its month; let t* be the failure month
// (first month with capital <= 0, else the final month). recovery_failure
// if the path ever climbed above 1.1x its starting capital and did so at
// least 4 months before failing; sudden_collapse if the drop from peak to
// failure took under 6 months; slow_bleed otherwise.
func classifyOne(p *simulate.Result, initialCapital float64) Trajectory {
	peak := p.CapitalPath[0]
	peakMonth := 0
	for t, v := range p.CapitalPath {
		if v > peak {
			peak = v
			peakMonth = t
		}
	}

	tStar := len(p.CapitalPath) - 1
	if p.RuinMonth != -1 {
		tStar = p.RuinMonth
	}

	switch {
	case peak > initialCapital*1.1 && peakMonth <= tStar-4:
		return TrajectoryRecoveryFailure
	case tStar-peakMonth < 6:
		return TrajectorySuddenCollapse
	default:
		return TrajectorySlowBleed
	}
}

func regimeImpact(paths []*simulate.Result, failedIdx []int) []RegimeImpact {
	failedSet := map[int]bool{}
	for _, i := range failedIdx {
		failedSet[i] = true
	}
	overallRate := float64(len(failedIdx)) / float64(len(paths))

	exposure := make(map[processes.Regime][]float64)
	for _, r := range processes.DefaultRegimeOrder {
		exposure[r] = make([]float64, len(paths))
	}
	for i, p := range paths {
		counts := map[processes.Regime]int{}
		for _, r := range p.RegimePath {
			counts[r]++
		}
		total := len(p.RegimePath)
		for _, r := range processes.DefaultRegimeOrder {
			if total > 0 {
				exposure[r][i] = float64(counts[r]) / float64(total)
			}
		}
	}

	out := make([]RegimeImpact, 0, len(processes.DefaultRegimeOrder))
	for _, r := range processes.DefaultRegimeOrder {
		threshold := mathx.Percentile(exposure[r], 75)
		failed, highExposure := 0, 0
		for i, e := range exposure[r] {
			if e > threshold {
				highExposure++
				if failedSet[i] {
					failed++
				}
			}
		}
		if highExposure == 0 {
			out = append(out, RegimeImpact{Regime: r})
			continue
		}
		rate := float64(failed) / float64(highExposure)
		mult := 0.0
		if overallRate > 0 {
			mult = rate / overallRate
		}
		out = append(out, RegimeImpact{Regime: r, FailureRate: rate, RiskMultiplier: mult})
	}
	return out
}

func buildInsights(pm *PreMortem) []string {
	insights := []string{
		fmt.Sprintf("%.1f%% of paths failed (ruin or return <= %.0f%%).", pm.FailureRate*100, pm.FailureThreshold),
	}
	if len(pm.TopCauses) > 0 {
		top := pm.TopCauses[0]
		insights = append(insights, fmt.Sprintf(
			"The strongest driver of failure is %s: failed paths average %.2f vs %.2f in successful paths (%s, %.0f%% difference).",
			top.Param, top.FailedMean, top.SuccessfulMean, top.Direction, top.PctDelta,
		))
	}
	for _, period := range pm.Timing.CriticalPeriods {
		insights = append(insights, fmt.Sprintf(
			"Failures cluster in months %d-%d, accounting for %.0f%% of all failures.",
			period.StartMonth, period.EndMonth, period.CumulativeFraction*100,
		))
	}
	if pm.FailedCount > 0 {
		insights = append(insights, fmt.Sprintf(
			"Failure shapes: %d sudden collapse, %d recovery failure, %d slow bleed.",
			pm.TrajectoryCounts[TrajectorySuddenCollapse],
			pm.TrajectoryCounts[TrajectoryRecoveryFailure],
			pm.TrajectoryCounts[TrajectorySlowBleed],
		))
	}
	for _, ri := range pm.RegimeImpacts {
		if ri.RiskMultiplier > 1.2 {
			insights = append(insights, fmt.Sprintf(
				"Paths with high exposure to the %s regime fail %.1fx more often than the batch average.",
				ri.Regime, ri.RiskMultiplier,
			))
		}
	}
	return insights
}
