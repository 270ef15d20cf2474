// Command dssctl runs a Monte Carlo expansion batch from the command line,
// either against a named preset or a JSON request file, and prints a
// summary to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pijarcapital/expansion-dss/internal/analytics"
	"github.com/pijarcapital/expansion-dss/internal/config"
	"github.com/pijarcapital/expansion-dss/internal/engine"
	"github.com/pijarcapital/expansion-dss/internal/obslog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:   "dssctl",
		Short: "Run expansion decision-support Monte Carlo batches",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			obslog.Init(logLevel, true)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(newRunCmd(), newPresetsCmd())
	return root
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List named scenario presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.Presets() {
				fmt.Printf("%-15s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		presetName        string
		reqFile           string
		numPaths          int
		seed              int64
		sensitivity       bool
		premortem         bool
		premortemThreshold float64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation batch and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(presetName, reqFile)
			if err != nil {
				return err
			}
			if numPaths > 0 {
				req.NumPaths = numPaths
			}
			if seed != 0 {
				req.Seed = seed
			}
			if err := req.Validate(); err != nil {
				return err
			}

			built, err := config.Build(req)
			if err != nil {
				return err
			}

			ctx := context.Background()
			results, err := engine.Run(ctx, engine.Request{
				Business:    built.Business,
				Regime:      built.Regime,
				RiskConfigs: built.RiskConfigs,
				PathConfig:  built.PathConfig,
				NumPaths:    req.NumPaths,
				Seed:        req.Seed,
			})
			if err != nil {
				return err
			}

			printSummary(results)
			printRiskProfile(analytics.ComputeRiskProfile(results, req.InitialCapital))

			if premortem {
				pm, err := analytics.ComputePreMortem(results, premortemThreshold)
				if err != nil {
					return err
				}
				printPreMortem(pm)
			}

			if sensitivity {
				sens, err := analytics.RunSensitivity(results, req.InitialCapital)
				if err != nil {
					return err
				}
				printSensitivity(sens)
			}

			return nil
		},
	}
	cmd.Flags().StringVar(&presetName, "preset", "base", "named preset to run (base, conservative, aggressive)")
	cmd.Flags().StringVar(&reqFile, "request-file", "", "path to a JSON RunRequest; overrides --preset")
	cmd.Flags().IntVar(&numPaths, "num-paths", 0, "override the number of paths (0 keeps the preset's value)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the RNG seed (0 keeps the preset's value)")
	cmd.Flags().BoolVar(&sensitivity, "sensitivity", false, "also run the realized-parameter sensitivity analysis")
	cmd.Flags().BoolVar(&premortem, "premortem", true, "also run the failure-cause pre-mortem analysis")
	cmd.Flags().Float64Var(&premortemThreshold, "premortem-threshold", -20, "total-return percent at or below which a surviving path counts as a failure")
	return cmd
}

func loadRequest(presetName, reqFile string) (config.RunRequest, error) {
	if reqFile != "" {
		data, err := os.ReadFile(reqFile)
		if err != nil {
			return config.RunRequest{}, err
		}
		var req config.RunRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return config.RunRequest{}, err
		}
		return req, nil
	}
	for _, p := range config.Presets() {
		if p.Name == presetName {
			return p.Request, nil
		}
	}
	return config.RunRequest{}, fmt.Errorf("unknown preset %q", presetName)
}

func printSummary(r *engine.Results) {
	s := r.Summary
	fmt.Printf("paths:                %d\n", len(r.Paths))
	fmt.Printf("mean final capital:   %.0f\n", s.MeanFinalCapital)
	fmt.Printf("median final capital: %.0f\n", s.MedianFinalCapital)
	fmt.Printf("std final capital:    %.0f\n", s.StdFinalCapital)
	fmt.Printf("mean return:          %.1f%%\n", s.MeanReturn)
	fmt.Printf("prob profit:          %.1f%%\n", s.ProbProfit*100)
	fmt.Printf("ruin probability:     %.1f%%\n", s.RuinProbability*100)
	fmt.Printf("breakeven rate:       %.1f%%\n", s.BreakevenRate*100)
	fmt.Printf("mean max drawdown:    %.1f%%\n", s.MeanMaxDrawdown*100)
	fmt.Printf("recommendation:       %s\n", r.Recommendation)
}

func printRiskProfile(p analytics.RiskProfile) {
	fmt.Println("\nrisk profile:")
	for _, v := range p.VaR {
		fmt.Printf("  VaR_%.0f=%.0f  CVaR_%.0f=%.0f\n", v.Confidence*100, v.VaR, v.Confidence*100, v.CVaR)
	}
	fmt.Printf("  mean max drawdown: %.1f%%  p95: %.1f%%\n", p.Drawdown.Mean*100, p.Drawdown.P95*100)
	fmt.Printf("  median survival month: %.0f  terminal survival: %.1f%%\n", p.Survival.MedianSurvival, p.Survival.TerminalSurvival*100)
	fmt.Printf("  mean months underwater: %.1f\n", p.Underwater.MeanMonths)
	fmt.Printf("  tail (worst 5%% by return): mean return=%.1f%% ruin rate=%.1f%%\n", p.Tail.MeanReturn, p.Tail.RuinRate*100)
}

func printPreMortem(pm *analytics.PreMortem) {
	fmt.Printf("\npre-mortem (failure = ruin or return <= %.0f%%, %d/%d paths failed, %.1f%%):\n",
		pm.FailureThreshold, pm.FailedCount, pm.TotalCount, pm.FailureRate*100)
	for _, c := range pm.TopCauses {
		fmt.Printf("  %-20s d=%.2f p=%.3f score=%.2f (%s)\n", c.Param, c.CohensD, c.WelchPValue, c.AttributionScore, c.Direction)
	}
	for _, w := range pm.Timing.CriticalPeriods {
		fmt.Printf("  critical period: months %d-%d, %.0f%% of failures, dominant cause %s\n",
			w.StartMonth, w.EndMonth, w.CumulativeFraction*100, w.DominantCause)
	}
	for _, line := range pm.Insights {
		fmt.Printf("  - %s\n", line)
	}
}

func printSensitivity(report *analytics.SensitivityReport) {
	fmt.Println("\nsensitivity (ranked by |Spearman rho|):")
	for _, p := range report.Params {
		fmt.Printf("  %-20s rho=%.3f p=%.3f r2=%.3f swing=%.1f asym=%.2f sig=%v\n",
			p.Param, p.Spearman, p.SpearmanP, p.MarginalR2, p.Swing, p.Asymmetry, p.Significant)
	}
	fmt.Printf("  joint r2: %.3f\n", report.JointR2)
	if len(report.SkippedColumns) > 0 {
		fmt.Printf("  skipped (zero variance): %v\n", report.SkippedColumns)
	}
}
