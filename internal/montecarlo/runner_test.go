package montecarlo

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/adamsim/internal/model"
)

func testRequest(workers int) model.RunRequest {
	return model.RunRequest{
		Trials: 40,
		Profile: model.OperatorProfile{
			Name:            "op",
			BaseTaskTimeSec: 3,
			TaskTimeJitter:  2,
			Strategy:        model.HighestSeverity,
		},
		Params:   model.TrialParams{Conditions: 6, HorizonSec: 30},
		Policies: []model.Policy{model.ShowAll, model.SingleHighest, model.SeverityEscalation},
		Seed:     1234,
		Workers:  workers,
	}
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := Percentile(sorted, 0.5); got != 5 {
		t.Fatalf("p50 = %v, want 5", got)
	}
	if got := Percentile(sorted, 0.9); got != 9 {
		t.Fatalf("p90 = %v, want 9", got)
	}
	if got := Percentile([]float64{4}, 0.9); got != 4 {
		t.Fatalf("single sample p90 = %v", got)
	}
	if got := Percentile(nil, 0.5); got != 0 {
		t.Fatalf("empty sample = %v", got)
	}
}

func TestDescribeDoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	got := Describe(values)
	if got.Mean != 2 || got.P50 != 2 || got.P90 != 2 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if values[0] != 3 || values[1] != 1 {
		t.Fatalf("input was reordered: %v", values)
	}
}

func TestSummarizeCountsIncomplete(t *testing.T) {
	results := []model.TrialResult{
		{ElapsedSec: 10, Harm: 4},
		{ElapsedSec: 3600, Harm: 8, Incomplete: true},
	}
	s := Summarize(model.ShowAll, results)
	if s.Count != 2 || s.Incomplete != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.ElapsedSec.Mean != 1805 || s.Harm.P90 != 4 {
		t.Fatalf("unexpected metrics: %+v", s)
	}
}

func TestRunIsDeterministicAcrossWorkers(t *testing.T) {
	ctx := context.Background()
	a, err := NewRunner(zerolog.Nop()).Run(ctx, testRequest(1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := NewRunner(zerolog.Nop()).Run(ctx, testRequest(8))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(a.Summaries) != 3 || len(a.Results) != 120 {
		t.Fatalf("unexpected output sizes: %d summaries, %d results", len(a.Summaries), len(a.Results))
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			t.Fatalf("result %d differs across worker counts:\n%+v\n%+v", i, a.Results[i], b.Results[i])
		}
	}
	for i := range a.Summaries {
		if a.Summaries[i] != b.Summaries[i] {
			t.Fatalf("summary %d differs across worker counts", i)
		}
		if a.Summaries[i].Count != 40 {
			t.Fatalf("summary %d count = %d", i, a.Summaries[i].Count)
		}
	}
	if a.ID == b.ID || a.ID == "" {
		t.Fatalf("expected distinct run ids, got %q and %q", a.ID, b.ID)
	}
}

func TestRunSharesConditionSetsAcrossPolicies(t *testing.T) {
	out, err := NewRunner(zerolog.Nop()).Run(context.Background(), testRequest(4))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := 0; i < 40; i++ {
		showAll := out.Results[i]
		single := out.Results[40+i]
		if showAll.Seed != single.Seed {
			t.Fatalf("trial %d seeds differ across policies", i)
		}
		if showAll.Policy != model.ShowAll || single.Policy != model.SingleHighest {
			t.Fatalf("results out of policy order at %d", i)
		}
		if showAll.Incomplete || showAll.Resolved != 6 {
			t.Fatalf("trial %d did not complete: %+v", i, showAll)
		}
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRunner(zerolog.Nop()).Run(ctx, testRequest(2)); err == nil {
		t.Fatalf("expected error from canceled context")
	}
}

func TestRunRejectsEmptyRequest(t *testing.T) {
	req := testRequest(1)
	req.Trials = 0
	if _, err := NewRunner(zerolog.Nop()).Run(context.Background(), req); err == nil {
		t.Fatalf("expected error for zero trials")
	}
	req = testRequest(1)
	req.Policies = nil
	if _, err := NewRunner(zerolog.Nop()).Run(context.Background(), req); err == nil {
		t.Fatalf("expected error for no policies")
	}
}
