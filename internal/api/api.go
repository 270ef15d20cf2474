// Package api exposes the simulation engine over HTTP: POST /simulate runs
// a batch, GET /presets lists named scenario bundles, GET /healthz reports
// liveness. Grounded on the donor server's plain net/http + CORS-middleware
// style rather than a routing framework.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pijarcapital/expansion-dss/internal/analytics"
	"github.com/pijarcapital/expansion-dss/internal/config"
	"github.com/pijarcapital/expansion-dss/internal/engine"
	"github.com/pijarcapital/expansion-dss/internal/errs"
	"github.com/pijarcapital/expansion-dss/internal/obslog"
	"github.com/pijarcapital/expansion-dss/internal/simulate"
)

// Server holds the dependencies shared by all HTTP handlers.
type Server struct {
	Log zerolog.Logger
}

// New constructs a Server with the package-level global logger.
func New() *Server {
	return &Server{Log: obslog.Logger()}
}

// RunMeta is attached to every /simulate response alongside the engine
// results, carrying a unique run id, the request's own framing, and
// wall-clock timing.
type RunMeta struct {
	RunID       string    `json:"run_id"`
	NumPaths    int       `json:"n_simulations"`
	TimeHorizon int       `json:"time_horizon"`
	Seed        int64     `json:"seed"`
	DurationMS  int64     `json:"computation_time_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// SimulateResponse is the wire shape of a successful /simulate call: the
// five SPEC_FULL.md Section 4.7 aggregation blocks plus the three Section
// 4.8-4.10 analytics blocks.
type SimulateResponse struct {
	Meta            RunMeta                  `json:"meta"`
	Summary         engine.SummaryStats      `json:"summary"`
	CapitalBands    engine.PercentileBand    `json:"capital_bands"`
	CustomerBands   engine.PercentileBand    `json:"customer_bands"`
	OutcomeBuckets  map[string]int           `json:"outcome_buckets"`
	ReturnHistogram []engine.HistogramBucket `json:"return_histogram"`
	SamplePaths     []*simulate.Result       `json:"sample_paths"`
	Recommendation  string                   `json:"recommendation"`

	Risk        analytics.RiskProfile        `json:"risk"`
	Sensitivity *analytics.SensitivityReport `json:"sensitivity"`
	PreMortem   *analytics.PreMortem         `json:"premortem"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// corsMiddleware mirrors the donor server's permissive-CORS wrapper.
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "content-type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// Routes registers every handler onto mux with CORS applied.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/simulate", corsMiddleware(s.handleSimulate))
	mux.HandleFunc("/presets", corsMiddleware(s.handlePresets))
	mux.HandleFunc("/healthz", corsMiddleware(s.handleHealth))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Presets())
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req config.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	built, err := config.Build(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	runID := uuid.New().String()
	log := obslog.ForRun(runID)
	start := time.Now()

	results, err := engine.Run(r.Context(), engine.Request{
		Business:    built.Business,
		Regime:      built.Regime,
		RiskConfigs: built.RiskConfigs,
		PathConfig:  built.PathConfig,
		NumPaths:    req.NumPaths,
		Seed:        req.Seed,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var invalid *errs.InvalidParameter
		if errors.As(err, &invalid) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Msg("simulation run failed")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	risk := analytics.ComputeRiskProfile(results, req.InitialCapital)
	sensitivity, err := analytics.RunSensitivity(results, req.InitialCapital)
	if err != nil {
		log.Warn().Err(err).Msg("sensitivity analysis skipped")
	}
	premortem, err := analytics.ComputePreMortem(results, -20)
	if err != nil {
		log.Warn().Err(err).Msg("premortem analysis skipped")
	}

	elapsed := time.Since(start)
	log.Info().
		Int("num_paths", req.NumPaths).
		Dur("elapsed", elapsed).
		Float64("ruin_probability", results.Summary.RuinProbability).
		Msg("simulation run complete")

	writeJSON(w, http.StatusOK, SimulateResponse{
		Meta: RunMeta{
			RunID:       runID,
			NumPaths:    req.NumPaths,
			TimeHorizon: req.HorizonMonths,
			Seed:        req.Seed,
			DurationMS:  elapsed.Milliseconds(),
			Timestamp:   start.UTC(),
		},
		Summary:         results.Summary,
		CapitalBands:    results.CapitalBands,
		CustomerBands:   results.CustomerBands,
		OutcomeBuckets:  results.OutcomeBuckets,
		ReturnHistogram: results.ReturnHistogram,
		SamplePaths:     results.SamplePaths,
		Recommendation:  results.Recommendation,
		Risk:            risk,
		Sensitivity:     sensitivity,
		PreMortem:       premortem,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
