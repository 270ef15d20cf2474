// Package analytics turns a raw engine.Results batch into the
// decision-support views an operator actually reads: tail-risk measures,
// parameter sensitivity, and a pre-mortem over the worst outcomes.
package analytics

import (
	"sort"

	"github.com/pijarcapital/expansion-dss/internal/engine"
	"github.com/pijarcapital/expansion-dss/internal/mathx"
	"github.com/pijarcapital/expansion-dss/internal/simulate"
)

// VarLevel is one Value-at-Risk / Conditional-VaR pair at confidence c.
type VarLevel struct {
	Confidence float64
	VaR        float64 // c-quantile loss (initial - final), loss-positive
	CVaR       float64 // mean(losses >= VaR)
}

// DrawdownProfile summarizes the maximum-drawdown distribution across a
// batch, plus how long the average path takes to recover from its worst
// point once it occurs.
type DrawdownProfile struct {
	Mean, Median, Std       float64
	P75, P90, P95, P99, Max float64
	MeanArgmaxMonth         float64 // mean month the per-path maximum drawdown occurred
	MeanRecoveryMonths      float64 // mean months from argmax back to the prior peak; -1 if no path in the batch ever recovered
}

// SurvivalProfile is the empirical survival curve S(t) = P(ruin month > t)
// and its implied hazard h(t), sampled at every month of the horizon.
type SurvivalProfile struct {
	Survival         []float64 // S(t), t = 0..horizon
	Hazard           []float64 // h(t) = (S(t-1)-S(t))/S(t-1), h(0) = 0
	MedianSurvival   float64   // first t with S(t) < 0.5; horizon+1 if never
	P10FailureMonth  float64   // first t with S(t) < 0.9; horizon+1 if at most 10% ever ruin
	TerminalSurvival float64   // S(horizon): fraction of paths that never ruined
}

// UnderwaterProfile describes how long paths spend with capital below their
// starting capital ("underwater").
type UnderwaterProfile struct {
	MeanMonths, MedianMonths, MaxMonths float64
	ProbabilityCurve                    []float64 // per-month P(underwater), t = 0..horizon
	MeanLongestStreak, P95LongestStreak float64
}

// TailAnalysis characterizes the worst 5% of paths by return and how the
// realized parameters of that slice differ from the batch as a whole.
type TailAnalysis struct {
	ReturnThreshold  float64 // 5th percentile of return; paths at or below this are "tail"
	MeanReturn       float64
	MeanFinalCapital float64
	RuinRate         float64
	ParamDeltas      map[string]ParamTailDelta
}

// ParamTailDelta is one realized parameter's mean in the tail slice versus
// the full batch, and the percent change between them.
type ParamTailDelta struct {
	TailMean       float64
	PopulationMean float64
	PctDelta       float64
}

// RiskProfile bundles the four tail-risk sub-analyses of SPEC_FULL.md
// Section 4.8.
type RiskProfile struct {
	VaR        []VarLevel // at 0.90, 0.95, 0.99, in that order
	Drawdown   DrawdownProfile
	Survival   SurvivalProfile
	Underwater UnderwaterProfile
	Tail       TailAnalysis
}

var varConfidences = []float64{0.90, 0.95, 0.99}

// ComputeRiskProfile derives a RiskProfile from a batch. initialCapital
// anchors the loss definition (initial - final) used by VaR/CVaR.
func ComputeRiskProfile(results *engine.Results, initialCapital float64) RiskProfile {
	paths := results.Paths
	n := len(paths)
	finals := make([]float64, n)
	losses := make([]float64, n)
	drawdowns := make([]float64, n)
	returns := make([]float64, n)
	argmaxMonths := make([]float64, n)
	var recoveryMonths []float64

	maxHorizon := 0
	for _, p := range paths {
		if len(p.CapitalPath)-1 > maxHorizon {
			maxHorizon = len(p.CapitalPath) - 1
		}
	}

	for i, p := range paths {
		final := p.CapitalPath[len(p.CapitalPath)-1]
		finals[i] = final
		losses[i] = initialCapital - final
		drawdowns[i] = p.MaxDrawdown
		returns[i] = mathx.ReturnPct(final, initialCapital)

		series, _ := mathx.Drawdown(p.CapitalPath)
		argmax := 0
		for m, dd := range series {
			if dd > series[argmax] {
				argmax = m
			}
		}
		argmaxMonths[i] = float64(argmax)
		if recMonths, recovered := recoveryFrom(p.CapitalPath, argmax); recovered {
			recoveryMonths = append(recoveryMonths, float64(recMonths))
		}
	}

	varLevels := make([]VarLevel, len(varConfidences))
	for i, c := range varConfidences {
		varQ := mathx.Percentile(losses, c*100)
		var tail []float64
		for _, l := range losses {
			if l >= varQ {
				tail = append(tail, l)
			}
		}
		if len(tail) == 0 {
			tail = []float64{varQ}
		}
		varLevels[i] = VarLevel{Confidence: c, VaR: varQ, CVaR: mathx.Mean(tail)}
	}

	drawdown := DrawdownProfile{
		Mean:               mathx.Mean(drawdowns),
		Median:              mathx.Percentile(drawdowns, 50),
		Std:                 mathx.Std(drawdowns),
		P75:                 mathx.Percentile(drawdowns, 75),
		P90:                 mathx.Percentile(drawdowns, 90),
		P95:                 mathx.Percentile(drawdowns, 95),
		P99:                 mathx.Percentile(drawdowns, 99),
		MeanArgmaxMonth:     mathx.Mean(argmaxMonths),
		MeanRecoveryMonths:  -1,
	}
	if len(drawdowns) > 0 {
		sortedDD := append([]float64(nil), drawdowns...)
		sort.Float64s(sortedDD)
		drawdown.Max = sortedDD[len(sortedDD)-1]
	}
	if len(recoveryMonths) > 0 {
		drawdown.MeanRecoveryMonths = mathx.Mean(recoveryMonths)
	}

	return RiskProfile{
		VaR:        varLevels,
		Drawdown:   drawdown,
		Survival:   survivalProfile(paths, maxHorizon),
		Underwater: underwaterProfile(paths, maxHorizon, initialCapital),
		Tail:       tailAnalysis(paths, returns, finals, initialCapital),
	}
}

// recoveryFrom returns the number of months from argmax (the month of
// worst drawdown) until capital first returns to its pre-drawdown peak, and
// whether that recovery happened before the path ended.
func recoveryFrom(capitalPath []float64, argmax int) (int, bool) {
	peak := capitalPath[0]
	for i := 0; i <= argmax; i++ {
		if capitalPath[i] > peak {
			peak = capitalPath[i]
		}
	}
	for m := argmax; m < len(capitalPath); m++ {
		if capitalPath[m] >= peak {
			return m - argmax, true
		}
	}
	return 0, false
}

// survivalProfile builds S(t)/h(t) from each path's ruin month (or "never
// ruined" if RuinMonth == -1, treated as surviving past the horizon).
func survivalProfile(paths []*simulate.Result, maxHorizon int) SurvivalProfile {
	n := len(paths)
	survival := make([]float64, maxHorizon+1)
	for t := 0; t <= maxHorizon; t++ {
		alive := 0
		for _, p := range paths {
			if p.RuinMonth == -1 || p.RuinMonth > t {
				alive++
			}
		}
		survival[t] = float64(alive) / float64(n)
	}

	hazard := make([]float64, maxHorizon+1)
	for t := 1; t <= maxHorizon; t++ {
		if survival[t-1] > 0 {
			hazard[t] = (survival[t-1] - survival[t]) / survival[t-1]
		}
	}

	medianSurvival := float64(maxHorizon + 1)
	for t := 0; t <= maxHorizon; t++ {
		if survival[t] < 0.5 {
			medianSurvival = float64(t)
			break
		}
	}

	p10FailureMonth := float64(maxHorizon + 1)
	for t := 0; t <= maxHorizon; t++ {
		if survival[t] < 0.9 {
			p10FailureMonth = float64(t)
			break
		}
	}

	return SurvivalProfile{
		Survival:         survival,
		Hazard:           hazard,
		MedianSurvival:   medianSurvival,
		P10FailureMonth:  p10FailureMonth,
		TerminalSurvival: survival[maxHorizon],
	}
}

// underwaterProfile measures, per path, months spent with capital below the
// initial capital, and the longest unbroken underwater streak. A path that
// ends before maxHorizon (ruin) keeps its final capital for the remaining
// months.
func underwaterProfile(paths []*simulate.Result, maxHorizon int, initialCapital float64) UnderwaterProfile {
	n := len(paths)
	months := make([]float64, n)
	streaks := make([]float64, n)
	underwaterCount := make([]int, maxHorizon+1)

	for i, p := range paths {
		total := 0
		longest := 0
		current := 0
		for t := 0; t <= maxHorizon; t++ {
			capital := p.CapitalPath[len(p.CapitalPath)-1]
			if t < len(p.CapitalPath) {
				capital = p.CapitalPath[t]
			}
			if capital < initialCapital {
				total++
				current++
				if current > longest {
					longest = current
				}
				underwaterCount[t]++
			} else {
				current = 0
			}
		}
		months[i] = float64(total)
		streaks[i] = float64(longest)
	}

	probCurve := make([]float64, maxHorizon+1)
	for t := range probCurve {
		probCurve[t] = float64(underwaterCount[t]) / float64(n)
	}

	return UnderwaterProfile{
		MeanMonths:        mathx.Mean(months),
		MedianMonths:       mathx.Percentile(months, 50),
		MaxMonths:          maxOf(months),
		ProbabilityCurve:   probCurve,
		MeanLongestStreak:  mathx.Mean(streaks),
		P95LongestStreak:   mathx.Percentile(streaks, 95),
	}
}

func maxOf(data []float64) float64 {
	m := 0.0
	for _, v := range data {
		if v > m {
			m = v
		}
	}
	return m
}

// tailAnalysis characterizes the worst 5% of paths by return, and compares
// each realized parameter's mean in that slice against the full batch.
func tailAnalysis(paths []*simulate.Result, returns, finals []float64, initialCapital float64) TailAnalysis {
	threshold := mathx.Percentile(returns, 5)

	var tailReturns, tailFinals []float64
	tailRuinCount := 0
	paramSums := map[string]float64{}
	paramCounts := map[string]int{}
	popParamSums := map[string]float64{}

	for i, p := range paths {
		for k, v := range p.RealizedParams {
			popParamSums[k] += v
		}
		if returns[i] <= threshold {
			tailReturns = append(tailReturns, returns[i])
			tailFinals = append(tailFinals, finals[i])
			if p.RuinMonth != -1 {
				tailRuinCount++
			}
			for k, v := range p.RealizedParams {
				paramSums[k] += v
				paramCounts[k]++
			}
		}
	}

	deltas := make(map[string]ParamTailDelta, len(paramSums))
	n := float64(len(paths))
	for k, sum := range paramSums {
		tailMean := sum / float64(paramCounts[k])
		popMean := popParamSums[k] / n
		pct := 0.0
		if popMean != 0 {
			pct = (tailMean - popMean) / popMean * 100
		}
		deltas[k] = ParamTailDelta{TailMean: tailMean, PopulationMean: popMean, PctDelta: pct}
	}

	tailCount := len(tailReturns)
	if tailCount == 0 {
		tailCount = 1
		tailReturns = []float64{threshold}
	}

	return TailAnalysis{
		ReturnThreshold:  threshold,
		MeanReturn:       mathx.Mean(tailReturns),
		MeanFinalCapital: mathx.Mean(tailFinals),
		RuinRate:         float64(tailRuinCount) / float64(tailCount),
		ParamDeltas:      deltas,
	}
}
