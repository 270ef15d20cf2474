package processes

import (
	"math"

	"github.com/pijarcapital/expansion-dss/internal/rng"
)

// JumpDiffusion is the Merton jump-diffusion process: a drift-compensated
// GBM plus compound-Poisson log-jumps, so that E[S(t)] = S0*exp(mu*t) holds
// regardless of the jump parameters.
type JumpDiffusion struct {
	Drift         float64
	Volatility    float64
	JumpIntensity float64
	JumpMean      float64 // mean of the log-jump size
	JumpStd       float64 // std of the log-jump size
	Dt            float64
}

// NewJumpDiffusion constructs a Merton jump-diffusion process.
func NewJumpDiffusion(drift, volatility, jumpIntensity, jumpMean, jumpStd, dt float64) *JumpDiffusion {
	return &JumpDiffusion{
		Drift:         drift,
		Volatility:    volatility,
		JumpIntensity: jumpIntensity,
		JumpMean:      jumpMean,
		JumpStd:       jumpStd,
		Dt:            dt,
	}
}

// compensatedDrift is the drift the internal GBM leg uses so that jumps
// don't bias E[S(t)] away from S0*exp(mu*t).
func (j *JumpDiffusion) compensatedDrift() float64 {
	return j.Drift - j.JumpIntensity*(math.Exp(j.JumpMean+0.5*j.JumpStd*j.JumpStd)-1)
}

func (j *JumpDiffusion) diffusionLeg() *GBM {
	return NewGBM(j.compensatedDrift(), j.Volatility, j.Dt)
}

// DecomposedPath is the result of Decompose: the full jump-diffusion path,
// the diffusion-only path for comparison, and per-step jump bookkeeping.
type DecomposedPath struct {
	Full       []float64
	Diffusion  []float64
	JumpTimes  []int // step indices (1-based into Full) at which >=1 jump fired
	JumpCounts []int // jump count fired at each step in JumpTimes
}

// Decompose draws n steps starting from s0, returning the full path (with
// jumps), a diffusion-only path sharing the same Brownian innovations, and
// the times/counts of jump arrivals.
func (j *JumpDiffusion) Decompose(s0 float64, n int, stream *rng.Stream) *DecomposedPath {
	gbm := j.diffusionLeg()
	drift := (gbm.Drift - 0.5*gbm.Volatility*gbm.Volatility) * gbm.Dt
	vol := gbm.Volatility * math.Sqrt(gbm.Dt)

	full := make([]float64, n+1)
	diffusion := make([]float64, n+1)
	full[0] = s0
	diffusion[0] = s0

	var jumpTimes, jumpCounts []int

	logFull := math.Log(maxFloat(s0, math.SmallestNonzeroFloat64))
	logDiff := logFull

	for i := 1; i <= n; i++ {
		z := stream.NormFloat64()
		increment := drift + vol*z
		logDiff += increment
		logFull += increment

		nJumps := stream.Poisson(j.JumpIntensity * j.Dt)
		if nJumps > 0 {
			jumpTimes = append(jumpTimes, i)
			jumpCounts = append(jumpCounts, nJumps)
			for k := 0; k < nJumps; k++ {
				logFull += j.JumpMean + j.JumpStd*stream.NormFloat64()
			}
		}

		if diffusion[i-1] == 0 {
			diffusion[i] = 0
		} else {
			diffusion[i] = math.Exp(logDiff)
		}
		if full[i-1] == 0 && nJumps == 0 {
			full[i] = 0
		} else {
			full[i] = math.Exp(logFull)
		}
	}

	return &DecomposedPath{Full: full, Diffusion: diffusion, JumpTimes: jumpTimes, JumpCounts: jumpCounts}
}

// Path is a convenience wrapper returning only the full (jump-inclusive) path.
func (j *JumpDiffusion) Path(s0 float64, n int, stream *rng.Stream) []float64 {
	return j.Decompose(s0, n, stream).Full
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
