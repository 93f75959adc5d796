// Package main provides the CLI entrypoint for adamsim.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/adamsim/internal/config"
	"github.com/verte-zerg/adamsim/internal/generator"
	"github.com/verte-zerg/adamsim/internal/logging"
	"github.com/verte-zerg/adamsim/internal/model"
	"github.com/verte-zerg/adamsim/internal/montecarlo"
	"github.com/verte-zerg/adamsim/internal/sim"
	"github.com/verte-zerg/adamsim/internal/stats"
	"github.com/verte-zerg/adamsim/internal/store"
	"github.com/verte-zerg/adamsim/internal/tui"
)

const (
	defaultOperator   = "operator"
	defaultBaseTask   = 5.0
	defaultJitter     = 2.0
	defaultStrategy   = "highest-severity"
	defaultPreempt    = 0.5
	defaultConditions = 10
	defaultHorizon    = 60
	defaultTrials     = 1000
	defaultHarmWeight = "squared"
	defaultPause      = 20
	defaultHistory    = 10
	defaultPlotHeight = 8
)

var logLevel string

// simFlags are the operator and trial settings shared by run, trace and play.
type simFlags struct {
	operator   string
	baseTask   float64
	jitter     float64
	strategy   string
	preempt    float64
	conditions int
	horizon    int
	policies   []string
	harmWeight string
	pause      int
	seed       int64
}

type runFlags struct {
	simFlags
	trials  int
	workers int
	format  string
	raw     bool
	save    bool
}

type traceFlags struct {
	simFlags
	height int
	color  bool
}

type playFlags struct {
	simFlags
	interval time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}
	rootCmd := &cobra.Command{
		Use:           "adamsim",
		Short:         "Alarm fatigue trial simulator",
		Long:          "Simulates an operator working through severity-ranked alarm conditions and compares presentation policies by fatigue, accuracy and harm.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonteCarlo(cmd, flags)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.DefaultLevel, "log level (debug, info, warn, error)")
	addRunFlags(rootCmd, flags)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newTraceCmd())
	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPoliciesCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func addSimFlags(cmd *cobra.Command, f *simFlags) {
	cmd.Flags().StringVar(&f.operator, "operator", defaultOperator, "operator profile name")
	cmd.Flags().Float64Var(&f.baseTask, "base-task", defaultBaseTask, "base task time in seconds")
	cmd.Flags().Float64Var(&f.jitter, "jitter", defaultJitter, "maximum extra task time in seconds")
	cmd.Flags().StringVar(&f.strategy, "strategy", defaultStrategy, "selection strategy (see 'adamsim policies')")
	cmd.Flags().Float64Var(&f.preempt, "preempt", defaultPreempt, "progress below which work may be preempted (0-1)")
	cmd.Flags().IntVar(&f.conditions, "conditions", defaultConditions, "conditions per trial")
	cmd.Flags().IntVar(&f.horizon, "horizon", defaultHorizon, "arrival window in seconds")
	cmd.Flags().StringSliceVar(&f.policies, "policy", nil, "presentation policies (repeatable or comma separated; default all)")
	cmd.Flags().StringVar(&f.harmWeight, "harm-weight", defaultHarmWeight, "harm weighting (linear, squared, exp)")
	cmd.Flags().IntVar(&f.pause, "pause", defaultPause, "severity-pause hold window in seconds")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (0 = time based)")
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	addSimFlags(cmd, &f.simFlags)
	cmd.Flags().IntVar(&f.trials, "trials", defaultTrials, "trials per policy")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel workers (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&f.format, "format", string(stats.FormatTable), "output format (table, json, yaml)")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "include every trial result")
	cmd.Flags().BoolVar(&f.save, "save", false, "save the run summaries to history")
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compare presentation policies over many randomized trials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonteCarlo(cmd, flags)
		},
	}
	addRunFlags(cmd, flags)
	return cmd
}

func runMonteCarlo(cmd *cobra.Command, f *runFlags) error {
	fileCfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applySimConfig(cmd, &f.simFlags, fileCfg)
	applyIntConfig(cmd, "trials", &f.trials, fileCfg.Trial.Trials)
	applyIntConfig(cmd, "workers", &f.workers, fileCfg.Trial.Workers)

	profile, params, err := resolveSim(&f.simFlags)
	if err != nil {
		return err
	}
	if err := validateRun(f.trials, f.workers); err != nil {
		return err
	}
	format, err := stats.ParseFormat(f.format)
	if err != nil {
		return fmt.Errorf("--format: %w", err)
	}

	req := model.RunRequest{
		Trials:   f.trials,
		Profile:  profile,
		Params:   params,
		Policies: parsePolicies(f.policies, log),
		Seed:     f.seed,
		Workers:  f.workers,
	}
	out, err := montecarlo.NewRunner(log).Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("monte carlo run failed: %w", err)
	}

	if f.save {
		if err := saveRun(cmd.Context(), out, log); err != nil {
			return err
		}
	}
	if !f.raw {
		out.Results = nil
	}
	if err := stats.WriteRun(cmd.OutOrStdout(), format, out, f.raw); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func saveRun(ctx context.Context, out model.RunOutput, log zerolog.Logger) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close db")
		}
	}()
	if err := st.SaveRun(ctx, out); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	log.Info().Str("run", out.ID).Msg("run saved")
	return nil
}

func newTraceCmd() *cobra.Command {
	flags := &traceFlags{}
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Simulate one trial and print its timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTraceCmd(cmd, flags)
		},
	}
	addSimFlags(cmd, &flags.simFlags)
	cmd.Flags().IntVar(&flags.height, "height", defaultPlotHeight, "plot height in rows")
	cmd.Flags().BoolVar(&flags.color, "color", false, "force colored plot output")
	return cmd
}

func runTraceCmd(cmd *cobra.Command, f *traceFlags) error {
	fileCfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applySimConfig(cmd, &f.simFlags, fileCfg)
	profile, params, err := resolveSim(&f.simFlags)
	if err != nil {
		return err
	}
	policy := parsePolicies(f.policies, log)[0]

	gen := generator.New(f.seed)
	trial := gen.Trial(fmt.Sprintf("trace-%d", gen.Seed()), params)
	var fatigue, visible []float64
	engine := sim.NewEngine(trial, sim.Options{
		Profile:    profile,
		Policy:     policy,
		HarmWeight: params.HarmWeight,
		PauseSec:   params.PauseSec,
		Observer: func(tick sim.TickInfo) {
			fatigue = append(fatigue, tick.Fatigue)
			visible = append(visible, float64(tick.Visible))
		},
	}, gen)
	res, err := engine.Run()
	if err != nil {
		return fmt.Errorf("trial failed: %w", err)
	}
	res.Seed = gen.Seed()
	log.Debug().Int64("seed", res.Seed).Int("elapsed", res.ElapsedSec).Msg("trace finished")

	w := cmd.OutOrStdout()
	if err := stats.RenderResult(w, res); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	if err := stats.RenderTimeline(w, engine.Trial()); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return stats.PlotTimeline(w, []stats.Series{
		{Name: "fatigue", Values: fatigue},
		{Name: "visible conditions", Values: visible, Lo: 0, Hi: float64(params.Conditions)},
	}, stats.PlotOptions{Title: "Per-second timeline", Height: f.height, Color: f.color})
}

func newPlayCmd() *cobra.Command {
	flags := &playFlags{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Handle the alarms yourself",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlayCmd(cmd, flags)
		},
	}
	addSimFlags(cmd, &flags.simFlags)
	cmd.Flags().DurationVar(&flags.interval, "interval", tui.DefaultInterval, "wall-clock time per simulated second")
	return cmd
}

func runPlayCmd(cmd *cobra.Command, f *playFlags) error {
	fileCfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applySimConfig(cmd, &f.simFlags, fileCfg)
	profile, params, err := resolveSim(&f.simFlags)
	if err != nil {
		return err
	}
	if f.interval <= 0 {
		return fmt.Errorf("--interval must be > 0")
	}
	m := tui.NewModel(tui.Config{
		Profile:  profile,
		Params:   params,
		Policy:   parsePolicies(f.policies, log)[0],
		Seed:     f.seed,
		Interval: f.interval,
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	var last int
	var policy string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg := model.HistoryConfig{Last: last}
			if policy != "" {
				p, ok := model.ParsePolicy(policy)
				if !ok {
					return fmt.Errorf("--policy: unknown policy %q", policy)
				}
				cfg.Policy = p.String()
			}
			if cfg.Last < 0 {
				return fmt.Errorf("--last must be >= 0")
			}

			st, err := store.Open(config.DefaultDBPath())
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					log.Warn().Err(cerr).Msg("failed to close db")
				}
			}()
			h, err := stats.BuildHistory(cmd.Context(), st, cfg)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			return stats.RenderHistory(cmd.OutOrStdout(), h)
		},
	}
	cmd.Flags().IntVar(&last, "last", defaultHistory, "show the N most recent runs (0 = all)")
	cmd.Flags().StringVar(&policy, "policy", "", "only runs that compared this policy")
	return cmd
}

func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List presentation policies and selection strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return stats.RenderPolicies(cmd.OutOrStdout())
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// loadConfig reads the config file and builds the logger. The log level flag
// overrides the [log] section.
func loadConfig(cmd *cobra.Command) (config.FileConfig, zerolog.Logger, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return config.FileConfig{}, zerolog.Nop(), fmt.Errorf("--log-level: %w", err)
	}
	return fileCfg, logging.New(cmd.ErrOrStderr(), level), nil
}

func applySimConfig(cmd *cobra.Command, f *simFlags, fileCfg config.FileConfig) {
	op := fileCfg.Operator
	applyStringConfig(cmd, "operator", &f.operator, op.Name)
	applyFloatConfig(cmd, "base-task", &f.baseTask, op.BaseTaskTime)
	applyFloatConfig(cmd, "jitter", &f.jitter, op.TaskTimeJitter)
	applyStringConfig(cmd, "strategy", &f.strategy, op.Strategy)
	applyFloatConfig(cmd, "preempt", &f.preempt, op.PreemptThreshold)

	tr := fileCfg.Trial
	applyIntConfig(cmd, "conditions", &f.conditions, tr.Conditions)
	applyIntConfig(cmd, "horizon", &f.horizon, tr.Horizon)
	applyStringSliceConfig(cmd, "policy", &f.policies, tr.Policies)
	applyStringConfig(cmd, "harm-weight", &f.harmWeight, tr.HarmWeight)
	applyIntConfig(cmd, "pause", &f.pause, tr.PauseSeconds)
	applyInt64Config(cmd, "seed", &f.seed, tr.Seed)
}

// resolveSim validates the shared flags and converts them into model types.
func resolveSim(f *simFlags) (model.OperatorProfile, model.TrialParams, error) {
	strategy, err := model.ParseStrategy(f.strategy)
	if err != nil {
		return model.OperatorProfile{}, model.TrialParams{}, fmt.Errorf("--strategy: %w", err)
	}
	harmWeight, err := model.ParseHarmWeight(f.harmWeight)
	if err != nil {
		return model.OperatorProfile{}, model.TrialParams{}, fmt.Errorf("--harm-weight: %w", err)
	}
	profile := model.OperatorProfile{
		Name:             f.operator,
		BaseTaskTimeSec:  f.baseTask,
		TaskTimeJitter:   f.jitter,
		Strategy:         strategy,
		PreemptThreshold: f.preempt,
	}
	params := model.TrialParams{
		Conditions: f.conditions,
		HorizonSec: f.horizon,
		HarmWeight: harmWeight,
		PauseSec:   f.pause,
	}
	if err := validateConfig(profile, params); err != nil {
		return model.OperatorProfile{}, model.TrialParams{}, err
	}
	return profile, params, nil
}

// parsePolicies resolves policy names in order, dropping duplicates. Unknown
// names fall back to single-highest with a warning. No names selects every
// policy.
func parsePolicies(names []string, log zerolog.Logger) []model.Policy {
	var out []model.Policy
	seen := map[model.Policy]bool{}
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			p, ok := model.ParsePolicy(name)
			if !ok {
				log.Warn().Str("policy", name).Str("fallback", p.String()).Msg("unknown presentation policy")
			}
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]model.Policy(nil), model.Policies...)
	}
	return out
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyStringSliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if len(value) == 0 {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# adamsim configuration
# Uncomment a value to enable it. CLI flags override config values.

[operator]
# name = %q               # Operator profile name
# base-task-time = %.1f        # Base task time in seconds
# task-time-jitter = %.1f      # Maximum extra task time in seconds
# strategy = %q   # highest-severity, earliest-shown, preempt-on-higher-severity
# preempt-threshold = %.2f    # Progress below which work may be preempted (0-1)

[trial]
# conditions = %d             # Conditions per trial
# horizon = %d                # Arrival window in seconds
# policies = ["show-all", "single-highest", "severity-escalation", "severity-pause"]
# trials = %d               # Trials per policy
# seed = 0                    # Random seed (0 = time based)
# workers = 0                 # Parallel workers (0 = GOMAXPROCS)
# harm-weight = %q       # linear, squared, exp
# pause-seconds = %d          # severity-pause hold window

[log]
# level = %q                # debug, info, warn, error
`,
		defaultOperator,
		defaultBaseTask,
		defaultJitter,
		defaultStrategy,
		defaultPreempt,
		defaultConditions,
		defaultHorizon,
		defaultTrials,
		defaultHarmWeight,
		defaultPause,
		logging.DefaultLevel,
	)
}

func validateConfig(profile model.OperatorProfile, params model.TrialParams) error {
	if !finiteIn(profile.BaseTaskTimeSec, 0, sim.MaxTrialSeconds) {
		return fmt.Errorf("--base-task must be between 0 and %d", sim.MaxTrialSeconds)
	}
	if !finiteIn(profile.TaskTimeJitter, 0, sim.MaxTrialSeconds) {
		return fmt.Errorf("--jitter must be between 0 and %d", sim.MaxTrialSeconds)
	}
	if !finiteIn(profile.PreemptThreshold, 0, 1) {
		return fmt.Errorf("--preempt must be between 0 and 1")
	}
	if params.Conditions <= 0 {
		return fmt.Errorf("--conditions must be > 0")
	}
	if params.HorizonSec <= 0 {
		return fmt.Errorf("--horizon must be > 0")
	}
	if params.PauseSec < 0 {
		return fmt.Errorf("--pause must be >= 0")
	}
	return nil
}

// finiteIn reports whether v is a finite number within [lo,hi].
func finiteIn(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

func validateRun(trials, workers int) error {
	if trials <= 0 {
		return fmt.Errorf("--trials must be > 0")
	}
	if workers < 0 {
		return fmt.Errorf("--workers must be >= 0")
	}
	return nil
}
