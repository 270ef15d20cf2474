// Package distributions implements the parametric probability distributions
// used to express uncertain simulation inputs: Triangular, Beta, LogNormal,
// Gamma, and the degenerate Fixed case. Each variant validates its
// parameters eagerly at construction (see internal/errs.InvalidParameter)
// and never draws a random number on an invalid configuration.
//
// Sampling always goes through this module's own internal/rng.Stream, never
// gonum's own RNG, so that a run's bitwise reproducibility depends only on
// the stream's seed. gonum's stat/distuv is used only for the analytic
// pieces (PDF, CDF, moments) where an independent, well-tested
// implementation is worth depending on and no random draw is involved.
package distributions

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pijarcapital/expansion-dss/internal/errs"
	"github.com/pijarcapital/expansion-dss/internal/rng"
)

// Distribution is the shared operation set across all variants, modeled as
// a small interface rather than a class hierarchy so callers composing
// user-selected variants still get a uniform contract.
type Distribution interface {
	Sample(n int, stream *rng.Stream) []float64
	PDF(x float64) float64
	CDF(x float64) float64
	Mean() float64
	Std() float64
	Support() (lo, hi float64)
}

// ---------------------------------------------------------------------
// Triangular
// ---------------------------------------------------------------------

// Triangular is the Triangular(min, mode, max) distribution.
type Triangular struct {
	Min, Mode, Max float64
}

// NewTriangular validates min <= mode <= max before returning.
func NewTriangular(min, mode, max float64) (*Triangular, error) {
	if !(min <= mode && mode <= max) {
		return nil, &errs.InvalidParameter{Field: "triangular", Reason: "requires min <= mode <= max"}
	}
	return &Triangular{Min: min, Mode: mode, Max: max}, nil
}

func (t *Triangular) Sample(n int, stream *rng.Stream) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = stream.Triangular(t.Min, t.Mode, t.Max)
	}
	return out
}

func (t *Triangular) PDF(x float64) float64 {
	if x < t.Min || x > t.Max {
		return 0
	}
	span := t.Max - t.Min
	if span < 1e-10 {
		if x == t.Mode {
			return math.Inf(1)
		}
		return 0
	}
	if x < t.Mode {
		return 2 * (x - t.Min) / (span * (t.Mode - t.Min))
	}
	if x > t.Mode {
		return 2 * (t.Max - x) / (span * (t.Max - t.Mode))
	}
	return 2 / span
}

func (t *Triangular) CDF(x float64) float64 {
	if x <= t.Min {
		return 0
	}
	if x >= t.Max {
		return 1
	}
	span := t.Max - t.Min
	if span < 1e-10 {
		if x >= t.Mode {
			return 1
		}
		return 0
	}
	if x <= t.Mode {
		return (x - t.Min) * (x - t.Min) / (span * (t.Mode - t.Min))
	}
	return 1 - (t.Max-x)*(t.Max-x)/(span*(t.Max-t.Mode))
}

func (t *Triangular) Mean() float64 { return (t.Min + t.Mode + t.Max) / 3 }

func (t *Triangular) Std() float64 {
	a, c, b := t.Min, t.Mode, t.Max
	variance := (a*a + b*b + c*c - a*b - a*c - b*c) / 18
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func (t *Triangular) Support() (lo, hi float64) { return t.Min, t.Max }

// ---------------------------------------------------------------------
// Beta
// ---------------------------------------------------------------------

// Beta is the Beta(alpha, beta) distribution on (0, 1).
type Beta struct {
	Alpha, BetaParam float64
}

// NewBeta validates alpha, beta > 0.
func NewBeta(alpha, beta float64) (*Beta, error) {
	if alpha <= 0 {
		return nil, &errs.InvalidParameter{Field: "beta.alpha", Reason: "must be > 0"}
	}
	if beta <= 0 {
		return nil, &errs.InvalidParameter{Field: "beta.beta", Reason: "must be > 0"}
	}
	return &Beta{Alpha: alpha, BetaParam: beta}, nil
}

// NewBetaFromMeanSampleSize builds a Beta via (alpha=mean*n, beta=(1-mean)*n),
// the standard effective-sample-size parameterization: mean in (0,1),
// sampleSize > 0.
func NewBetaFromMeanSampleSize(mean, sampleSize float64) (*Beta, error) {
	if mean <= 0 || mean >= 1 {
		return nil, &errs.InvalidParameter{Field: "beta.mean", Reason: "must be in (0, 1)"}
	}
	if sampleSize <= 0 {
		return nil, &errs.InvalidParameter{Field: "beta.sample_size", Reason: "must be > 0"}
	}
	return NewBeta(mean*sampleSize, (1-mean)*sampleSize)
}

func (b *Beta) Sample(n int, stream *rng.Stream) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = stream.Beta(b.Alpha, b.BetaParam)
	}
	return out
}

func (b *Beta) dist() distuv.Beta { return distuv.Beta{Alpha: b.Alpha, Beta: b.BetaParam} }

func (b *Beta) PDF(x float64) float64 { return b.dist().Prob(x) }
func (b *Beta) CDF(x float64) float64 { return b.dist().CDF(x) }
func (b *Beta) Mean() float64         { return b.Alpha / (b.Alpha + b.BetaParam) }
func (b *Beta) Std() float64          { return math.Sqrt(b.dist().Variance()) }
func (b *Beta) Support() (lo, hi float64) { return 0, 1 }

// ---------------------------------------------------------------------
// LogNormal
// ---------------------------------------------------------------------

// LogNormal is the LogNormal(mu, sigma) distribution, mu the log-mean.
type LogNormal struct {
	Mu, Sigma float64
}

// NewLogNormal validates sigma > 0.
func NewLogNormal(mu, sigma float64) (*LogNormal, error) {
	if sigma <= 0 {
		return nil, &errs.InvalidParameter{Field: "lognormal.sigma", Reason: "must be > 0"}
	}
	return &LogNormal{Mu: mu, Sigma: sigma}, nil
}

// NewLogNormalFromMeanCV builds a LogNormal from the natural-scale mean and
// coefficient of variation: sigma^2 = log(1+cv^2), mu = log(mean) - sigma^2/2.
func NewLogNormalFromMeanCV(mean, cv float64) (*LogNormal, error) {
	if mean <= 0 {
		return nil, &errs.InvalidParameter{Field: "lognormal.mean", Reason: "must be > 0"}
	}
	if cv <= 0 {
		return nil, &errs.InvalidParameter{Field: "lognormal.cv", Reason: "must be > 0"}
	}
	sigma2 := math.Log(1 + cv*cv)
	mu := math.Log(mean) - sigma2/2
	return NewLogNormal(mu, math.Sqrt(sigma2))
}

func (l *LogNormal) Sample(n int, stream *rng.Stream) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Exp(l.Mu + l.Sigma*stream.NormFloat64())
	}
	return out
}

func (l *LogNormal) dist() distuv.LogNormal { return distuv.LogNormal{Mu: l.Mu, Sigma: l.Sigma} }

func (l *LogNormal) PDF(x float64) float64 { return l.dist().Prob(x) }
func (l *LogNormal) CDF(x float64) float64 { return l.dist().CDF(x) }
func (l *LogNormal) Mean() float64         { return math.Exp(l.Mu + l.Sigma*l.Sigma/2) }
func (l *LogNormal) Std() float64          { return math.Sqrt(l.dist().Variance()) }
func (l *LogNormal) Support() (lo, hi float64) { return 0, math.Inf(1) }

// ---------------------------------------------------------------------
// Gamma
// ---------------------------------------------------------------------

// Gamma is the Gamma(shape, scale) distribution.
type Gamma struct {
	Shape, Scale float64
}

// NewGamma validates shape, scale > 0.
func NewGamma(shape, scale float64) (*Gamma, error) {
	if shape <= 0 {
		return nil, &errs.InvalidParameter{Field: "gamma.shape", Reason: "must be > 0"}
	}
	if scale <= 0 {
		return nil, &errs.InvalidParameter{Field: "gamma.scale", Reason: "must be > 0"}
	}
	return &Gamma{Shape: shape, Scale: scale}, nil
}

// NewGammaFromMeanCV builds a Gamma from the mean and coefficient of
// variation: shape = 1/cv^2, scale = mean*cv^2.
func NewGammaFromMeanCV(mean, cv float64) (*Gamma, error) {
	if mean <= 0 {
		return nil, &errs.InvalidParameter{Field: "gamma.mean", Reason: "must be > 0"}
	}
	if cv <= 0 {
		return nil, &errs.InvalidParameter{Field: "gamma.cv", Reason: "must be > 0"}
	}
	return NewGamma(1/(cv*cv), mean*cv*cv)
}

func (g *Gamma) Sample(n int, stream *rng.Stream) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = stream.Gamma(g.Shape, g.Scale)
	}
	return out
}

func (g *Gamma) dist() distuv.Gamma { return distuv.Gamma{Alpha: g.Shape, Beta: 1 / g.Scale} }

func (g *Gamma) PDF(x float64) float64 { return g.dist().Prob(x) }
func (g *Gamma) CDF(x float64) float64 { return g.dist().CDF(x) }
func (g *Gamma) Mean() float64         { return g.Shape * g.Scale }
func (g *Gamma) Std() float64          { return math.Sqrt(g.Shape) * g.Scale }
func (g *Gamma) Support() (lo, hi float64) { return 0, math.Inf(1) }

// ---------------------------------------------------------------------
// Fixed
// ---------------------------------------------------------------------

// Fixed is a point-mass "distribution" at Value. It is implemented as sugar
// over a degenerate Triangular{Value, Value, Value} rather than its own
// sampling path, matching the donor factory's treatment of fixed inputs as
// degenerate triangulars (see DESIGN.md).
type Fixed struct {
	inner *Triangular
	Value float64
}

// NewFixed always succeeds; a point mass has no parameters to violate.
func NewFixed(value float64) *Fixed {
	return &Fixed{inner: &Triangular{Min: value, Mode: value, Max: value}, Value: value}
}

func (f *Fixed) Sample(n int, stream *rng.Stream) []float64 { return f.inner.Sample(n, stream) }
func (f *Fixed) PDF(x float64) float64                      { return f.inner.PDF(x) }
func (f *Fixed) CDF(x float64) float64                      { return f.inner.CDF(x) }
func (f *Fixed) Mean() float64                              { return f.Value }
func (f *Fixed) Std() float64                               { return 0 }
func (f *Fixed) Support() (lo, hi float64)                  { return f.Value, f.Value }
