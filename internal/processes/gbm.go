package processes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pijarcapital/expansion-dss/internal/rng"
)

// GBM is geometric Brownian motion with the exact log-space discretization:
// log S(t+dt) = log S(t) + (mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z.
type GBM struct {
	Drift      float64
	Volatility float64
	Dt         float64
}

// NewGBM constructs a GBM process. Volatility must be >= 0.
func NewGBM(drift, volatility, dt float64) *GBM {
	return &GBM{Drift: drift, Volatility: volatility, Dt: dt}
}

// Path draws n steps starting from s0, returning the full price path of
// length n+1 (index 0 is s0). One innovation is drawn per step and the
// path is built by exponentiating the running sum of log increments.
func (g *GBM) Path(s0 float64, n int, stream *rng.Stream) []float64 {
	path := make([]float64, n+1)
	path[0] = s0
	if s0 == 0 {
		return path
	}
	drift := (g.Drift - 0.5*g.Volatility*g.Volatility) * g.Dt
	vol := g.Volatility * math.Sqrt(g.Dt)
	logCum := math.Log(s0)
	for i := 1; i <= n; i++ {
		if path[i-1] == 0 {
			path[i] = 0
			continue
		}
		logCum += drift + vol*stream.NormFloat64()
		path[i] = math.Exp(logCum)
	}
	return path
}

// Mean returns the analytic expectation E[S(t)] = S0*exp(mu*t).
func (g *GBM) Mean(s0, t float64) float64 { return s0 * math.Exp(g.Drift*t) }

// Median returns the analytic median S0*exp((mu - sigma^2/2)*t).
func (g *GBM) Median(s0, t float64) float64 {
	return s0 * math.Exp((g.Drift-0.5*g.Volatility*g.Volatility)*t)
}

// Quantile returns the q-quantile (q in (0,1)) of S(t) via the inverse
// standard-normal CDF applied directly — replacing a runtime SciPy call
// with a native implementation (see DESIGN.md, Open Question 5).
func (g *GBM) Quantile(s0, t, q float64) float64 {
	z := distuv.UnitNormal.Quantile(q)
	return s0 * math.Exp((g.Drift-0.5*g.Volatility*g.Volatility)*t+g.Volatility*math.Sqrt(t)*z)
}
