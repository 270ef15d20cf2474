package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pijarcapital/expansion-dss/internal/engine"
	"github.com/pijarcapital/expansion-dss/internal/errs"
	"github.com/pijarcapital/expansion-dss/internal/mathx"
)

// ParamSensitivity is one realized parameter's correlation with total
// return across a batch, plus its tornado-chart swing.
type ParamSensitivity struct {
	Param string

	PearsonR  float64
	PearsonP  float64
	Spearman  float64
	SpearmanP float64
	// Significant mirrors SPEC_FULL.md's significance rule: the Spearman
	// p-value must fall below 0.05 for a driver to count as a top driver.
	Significant bool

	MarginalR2 float64 // Pearson r^2, exact for a univariate OLS fit

	// Tornado: a univariate linear fit y = a + b*x evaluated at the
	// parameter's p10/median/p90 realized values.
	Low, Base, High          float64 // realized parameter values at p10/median/p90
	PredictedLow, PredictedHigh float64 // predicted return at Low/High
	Swing                    float64 // |PredictedHigh - PredictedLow|
	Asymmetry                float64 // (upside-downside)/(swing+eps), upside/downside relative to predicted base
}

// SensitivityReport is the full output of SPEC_FULL.md Section 4.9: a
// per-parameter correlation/tornado table, the joint variance decomposition,
// and the ranked top drivers by sign.
type SensitivityReport struct {
	Params           []ParamSensitivity // sorted by |Spearman| descending
	JointR2          float64            // multiple-regression R^2 across all non-degenerate columns
	SkippedColumns   []string           // columns dropped as zero-variance (errs.NumericalDegenerate)
	TopPositive      []string           // up to 3 significant positive drivers, by |Spearman| descending
	TopNegative      []string           // up to 3 significant negative drivers, by |Spearman| descending
}

const tornadoEpsilon = 1e-9

// RunSensitivity computes the spec'd sensitivity analysis directly from one
// batch's realized parameters — no additional simulation is run. Returns
// errs.EmptyCorpus if results has zero paths.
func RunSensitivity(results *engine.Results, initialCapital float64) (*SensitivityReport, error) {
	n := len(results.Paths)
	if n == 0 {
		return nil, &errs.EmptyCorpus{Analysis: "sensitivity"}
	}

	returns := make([]float64, n)
	columns := map[string][]float64{}
	for i, p := range results.Paths {
		final := p.CapitalPath[len(p.CapitalPath)-1]
		returns[i] = mathx.ReturnPct(final, initialCapital)
		for k, v := range p.RealizedParams {
			columns[k] = append(columns[k], v)
		}
	}

	names := make([]string, 0, len(columns))
	for k := range columns {
		names = append(names, k)
	}
	sort.Strings(names)

	var kept []string
	var skipped []string
	paramsByName := map[string]ParamSensitivity{}

	for _, name := range names {
		x := columns[name]
		if mathx.Variance(x) < 1e-15 {
			skipped = append(skipped, name)
			continue
		}
		kept = append(kept, name)
		paramsByName[name] = oneParamSensitivity(name, x, returns)
	}

	jointR2 := jointR2(kept, columns, returns)

	params := make([]ParamSensitivity, 0, len(kept))
	for _, name := range kept {
		params = append(params, paramsByName[name])
	}
	sort.Slice(params, func(i, j int) bool {
		return math.Abs(params[i].Spearman) > math.Abs(params[j].Spearman)
	})

	var topPos, topNeg []string
	for _, p := range params {
		if !p.Significant {
			continue
		}
		if p.Spearman > 0 && len(topPos) < 3 {
			topPos = append(topPos, p.Param)
		}
		if p.Spearman < 0 && len(topNeg) < 3 {
			topNeg = append(topNeg, p.Param)
		}
	}

	return &SensitivityReport{
		Params:         params,
		JointR2:        jointR2,
		SkippedColumns: skipped,
		TopPositive:    topPos,
		TopNegative:    topNeg,
	}, nil
}

func oneParamSensitivity(name string, x, y []float64) ParamSensitivity {
	r := pearson(x, y)
	rho := spearman(x, y)
	n := len(x)

	pearsonP := correlationPValue(r, n)
	spearmanP := correlationPValue(rho, n)

	meanX, meanY := mathx.Mean(x), mathx.Mean(y)
	stdX, stdY := mathx.Std(x), mathx.Std(y)
	var b, a float64
	if stdX > 0 {
		b = r * stdY / stdX
		a = meanY - b*meanX
	}

	low := mathx.Percentile(x, 10)
	base := mathx.Percentile(x, 50)
	high := mathx.Percentile(x, 90)
	predLow := a + b*low
	predHigh := a + b*high
	predBase := a + b*base
	swing := math.Abs(predHigh - predLow)
	upside := predHigh - predBase
	downside := predBase - predLow
	asymmetry := (upside - downside) / (swing + tornadoEpsilon)

	return ParamSensitivity{
		Param:          name,
		PearsonR:       r,
		PearsonP:       pearsonP,
		Spearman:       rho,
		SpearmanP:      spearmanP,
		Significant:    spearmanP < 0.05,
		MarginalR2:     r * r,
		Low:            low,
		Base:           base,
		High:           high,
		PredictedLow:   predLow,
		PredictedHigh:  predHigh,
		Swing:          swing,
		Asymmetry:      asymmetry,
	}
}

func pearson(x, y []float64) float64 {
	meanX, meanY := mathx.Mean(x), mathx.Mean(y)
	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX <= 0 || varY <= 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func spearman(x, y []float64) float64 {
	return pearson(rank(x), rank(y))
}

// rank returns the average-rank transform of data (ties receive the mean of
// the ranks they span), 1-indexed.
func rank(data []float64) []float64 {
	n := len(data)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return data[idx[a]] < data[idx[b]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && data[idx[j+1]] == data[idx[i]] {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j + 1
	}
	return ranks
}

// correlationPValue computes the two-sided p-value for a Pearson/Spearman
// correlation coefficient r over n observations via the standard
// t-distributed test statistic t = r*sqrt((n-2)/(1-r^2)), df = n-2.
func correlationPValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return studentTTwoSided(t, df)
}

// studentTTwoSided returns the two-sided p-value of test statistic t under
// a Student's t distribution with df degrees of freedom.
func studentTTwoSided(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(t)))
}

// jointR2 fits a multiple linear regression y = a + sum(b_i*x_i) over the
// kept (non-degenerate) columns via ordinary least squares and returns its
// R^2. Falls back to the sum of marginal R^2 values (clamped to 1) if the
// design matrix is singular — a second line of defense behind the
// zero-variance column filter already applied by the caller.
func jointR2(kept []string, columns map[string][]float64, y []float64) float64 {
	if len(kept) == 0 {
		return 0
	}
	n := len(y)
	p := len(kept)

	a := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1)
		for j, name := range kept {
			a.Set(i, j+1, columns[name][i])
		}
	}
	b := mat.NewVecDense(n, append([]float64(nil), y...))

	var coeffs mat.VecDense
	if err := coeffs.SolveVec(a, b); err != nil {
		sum := 0.0
		for _, name := range kept {
			sum += pearson(columns[name], y) * pearson(columns[name], y)
		}
		if sum > 1 {
			sum = 1
		}
		return sum
	}

	var pred mat.VecDense
	pred.MulVec(a, &coeffs)

	meanY := mathx.Mean(y)
	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		res := y[i] - pred.AtVec(i)
		ssRes += res * res
		dt := y[i] - meanY
		ssTot += dt * dt
	}
	if ssTot <= 1e-10 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return r2
}
