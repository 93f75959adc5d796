// Package montecarlo runs many independent trials per presentation policy and
// aggregates their results.
package montecarlo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/adamsim/internal/generator"
	"github.com/verte-zerg/adamsim/internal/model"
	"github.com/verte-zerg/adamsim/internal/sim"
)

// Runner executes Monte Carlo comparisons.
type Runner struct {
	log zerolog.Logger
	now func() time.Time
}

// NewRunner returns a runner that logs through log.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log, now: time.Now}
}

// Run simulates req.Trials trials for every requested policy. Trial i uses the
// same condition set under every policy. Trials run in parallel; results are
// ordered by policy, then trial index, independent of scheduling.
func (r *Runner) Run(ctx context.Context, req model.RunRequest) (model.RunOutput, error) {
	if req.Trials <= 0 {
		return model.RunOutput{}, fmt.Errorf("trial count must be > 0")
	}
	if len(req.Policies) == 0 {
		return model.RunOutput{}, fmt.Errorf("no policies to compare")
	}
	seed := req.Seed
	if seed == 0 {
		seed = r.now().UnixNano()
	}
	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := model.RunOutput{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
		Seed:      seed,
		Trials:    req.Trials,
		Profile:   req.Profile,
		Params:    req.Params,
	}
	r.log.Info().
		Str("run", out.ID).
		Int("trials", req.Trials).
		Int("conditions", req.Params.Conditions).
		Int("workers", workers).
		Int64("seed", seed).
		Str("strategy", req.Profile.Strategy.String()).
		Msg("starting monte carlo run")

	results := make([][]model.TrialResult, len(req.Policies))
	for i := range results {
		results[i] = make([]model.TrialResult, req.Trials)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for pi, policy := range req.Policies {
		for i := 0; i < req.Trials; i++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := RunTrial(policy, req.Profile, req.Params, generator.TrialSeed(seed, i))
				if err != nil {
					return fmt.Errorf("%s trial %d: %w", policy, i, err)
				}
				results[pi][i] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return model.RunOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.RunOutput{}, err
	}

	for pi, policy := range req.Policies {
		summary := Summarize(policy, results[pi])
		if summary.Incomplete > 0 {
			r.log.Warn().
				Str("policy", policy.String()).
				Int("incomplete", summary.Incomplete).
				Msg("trials reached the time cap")
		}
		out.Summaries = append(out.Summaries, summary)
		out.Results = append(out.Results, results[pi]...)
	}
	r.log.Info().
		Str("run", out.ID).
		Dur("took", r.now().Sub(out.StartedAt)).
		Msg("monte carlo run finished")
	return out, nil
}

// RunTrial simulates one trial with its own random source.
func RunTrial(policy model.Policy, profile model.OperatorProfile, params model.TrialParams, seed int64) (model.TrialResult, error) {
	gen := generator.New(seed)
	trial := gen.Trial(fmt.Sprintf("trial-%d", seed), params)
	engine := sim.NewEngine(trial, sim.Options{
		Profile:    profile,
		Policy:     policy,
		HarmWeight: params.HarmWeight,
		PauseSec:   params.PauseSec,
	}, gen)
	res, err := engine.Run()
	if err != nil {
		return model.TrialResult{}, err
	}
	res.Seed = gen.Seed()
	return res, nil
}
