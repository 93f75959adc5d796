package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/verte-zerg/adamsim/internal/model"
)

func profile(base, jitter float64, strategy model.Strategy, threshold float64) model.OperatorProfile {
	return model.OperatorProfile{
		Name:             "op",
		BaseTaskTimeSec:  base,
		TaskTimeJitter:   jitter,
		Strategy:         strategy,
		PreemptThreshold: threshold,
	}
}

type jitterSource struct{ *rand.Rand }

func (j jitterSource) Jitter(maxSec float64) float64 {
	if maxSec <= 0 {
		return 0
	}
	return j.Float64() * maxSec
}

func randomTrial(rng *rand.Rand, n, horizon int) Trial {
	conds := make([]Condition, n)
	for i := range conds {
		conds[i] = NewCondition(i, 1+rng.Intn(5), rng.Intn(horizon))
	}
	return NewTrial("random", conds)
}

func TestEngineSingleCondition(t *testing.T) {
	trial := NewTrial("a", []Condition{NewCondition(0, 5, 0)})
	e := NewEngine(trial, Options{Profile: profile(2, 0, model.HighestSeverity, 0), Policy: model.ShowAll}, nil)
	if err := e.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	c := e.Trial().Conditions[0]
	if c.ShownAtSec != 0 {
		t.Fatalf("expected shown at 0, got %d", c.ShownAtSec)
	}
	opened, ok := e.Session()
	if !ok || opened.Initial != 2 || opened.Remaining != 1 {
		t.Fatalf("unexpected session after first second: %+v, %v", opened, ok)
	}

	res, err := e.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	c = e.Trial().Conditions[0]
	if c.Visibility != Resolved || c.ResolvedAtSec != 2 {
		t.Fatalf("expected resolution at 2s: %+v", c)
	}
	if res.Score != 62.5 {
		t.Fatalf("score = %v, want 62.5", res.Score)
	}
	if res.Harm != 50 {
		t.Fatalf("harm = %v, want 50", res.Harm)
	}
	if res.ElapsedSec != 2 || res.Resolved != 1 || res.Incomplete {
		t.Fatalf("unexpected result: %+v", res)
	}
	wantFatigue := 2.0 / 240
	if math.Abs(res.FinalFatigue-wantFatigue) > 1e-12 {
		t.Fatalf("final fatigue = %v, want %v", res.FinalFatigue, wantFatigue)
	}
	if math.Abs(res.AvgAccuracy-0.9*(1-wantFatigue)) > 1e-12 {
		t.Fatalf("avg accuracy = %v", res.AvgAccuracy)
	}
}

func TestEngineOneSessionAtATime(t *testing.T) {
	trial := NewTrial("b", []Condition{NewCondition(0, 1, 0), NewCondition(0, 5, 0)})
	var ticks []TickInfo
	opts := Options{
		Profile:  profile(2, 0, model.HighestSeverity, 0),
		Policy:   model.ShowAll,
		Observer: func(ti TickInfo) { ticks = append(ticks, ti) },
	}
	e := NewEngine(trial, opts, nil)
	if _, err := e.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	severe := e.Trial().Conditions[1]
	mild := e.Trial().Conditions[0]
	if severe.ResolvedAtSec != 2 {
		t.Fatalf("severity-5 resolved at %d, want 2", severe.ResolvedAtSec)
	}
	if mild.ResolvedAtSec <= severe.ResolvedAtSec {
		t.Fatalf("severity-1 resolved before severity-5")
	}
	for _, ti := range ticks {
		if ti.Target == mild.ID && ti.Second <= severe.ResolvedAtSec {
			t.Fatalf("severity-1 worked at %ds before severity-5 resolved", ti.Second)
		}
	}
}

func TestEnginePreemptKeepsPartialWork(t *testing.T) {
	trial := NewTrial("c", []Condition{NewCondition(0, 2, 0), NewCondition(0, 5, 1)})
	opts := Options{
		Profile: profile(10, 0, model.PreemptOnHigherSeverity, 0.8),
		Policy:  model.ShowAll,
	}
	e := NewEngine(trial, opts, nil)
	if err := e.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if e.Now() != 1 {
		t.Fatalf("expected clock at 1, got %d", e.Now())
	}
	cur, ok := e.Session()
	if !ok || cur.ConditionID != 1 {
		t.Fatalf("expected switch to severity-5 condition at 1s, got %+v", cur)
	}
	paused, ok := e.PausedSession(0)
	if !ok || paused.Remaining != 9 || paused.Initial != 10 {
		t.Fatalf("expected paused session with 9 of 10 seconds left, got %+v, %v", paused, ok)
	}

	if _, err := e.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	low := e.Trial().Conditions[0]
	high := e.Trial().Conditions[1]
	if got := low.ResolvedAtSec - high.ResolvedAtSec; got != 9 {
		t.Fatalf("resumed session took %ds, want 9", got)
	}
}

func TestEngineNoPreemptAboveThreshold(t *testing.T) {
	trial := NewTrial("c", []Condition{NewCondition(0, 2, 0), NewCondition(0, 5, 5)})
	opts := Options{
		Profile: profile(6, 0, model.PreemptOnHigherSeverity, 0.5),
		Policy:  model.ShowAll,
	}
	e := NewEngine(trial, opts, nil)
	if _, err := e.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := e.Trial().Conditions[0].ResolvedAtSec; got != 6 {
		t.Fatalf("severity-2 resolved at %d, want 6", got)
	}
}

func TestEngineEscalationEqualSeverityNeverSwitches(t *testing.T) {
	trial := NewTrial("eq", []Condition{NewCondition(0, 3, 0), NewCondition(0, 3, 1)})
	opts := Options{Profile: profile(4, 0, model.HighestSeverity, 0), Policy: model.SeverityEscalation}
	e := NewEngine(trial, opts, nil)
	for !e.Done() {
		if err := e.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
		second := e.Trial().Conditions[1]
		first := e.Trial().Conditions[0]
		if second.Visibility == Shown && first.Visibility != Resolved {
			t.Fatalf("equal severity switched at %ds", e.Now())
		}
	}
	first := e.Trial().Conditions[0]
	second := e.Trial().Conditions[1]
	if second.ShownAtSec != first.ResolvedAtSec {
		t.Fatalf("second condition shown at %d, want %d", second.ShownAtSec, first.ResolvedAtSec)
	}
}

func TestEngineEscalationHidesTarget(t *testing.T) {
	trial := NewTrial("esc", []Condition{NewCondition(0, 2, 0), NewCondition(0, 4, 2)})
	opts := Options{Profile: profile(5, 0, model.HighestSeverity, 0), Policy: model.SeverityEscalation}
	e := NewEngine(trial, opts, nil)
	for e.Now() < 2 {
		if err := e.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if _, ok := e.Session(); ok {
		t.Fatalf("hidden target should be paused")
	}
	if paused, ok := e.PausedSession(0); !ok || paused.Remaining != 3 {
		t.Fatalf("expected paused work on hidden condition, got %+v, %v", paused, ok)
	}
	res, err := e.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Incomplete || res.Resolved != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	low := e.Trial().Conditions[0]
	high := e.Trial().Conditions[1]
	if low.ResolvedAtSec-high.ResolvedAtSec != 3 {
		t.Fatalf("hidden condition did not resume: low=%d high=%d", low.ResolvedAtSec, high.ResolvedAtSec)
	}
}

func TestEngineCapMarksIncomplete(t *testing.T) {
	trial := NewTrial("cap", []Condition{NewCondition(0, 5, 0), NewCondition(0, 5, 0)})
	opts := Options{Profile: profile(30, 0, model.HighestSeverity, 0), Policy: model.ShowAll, MaxSeconds: 40}
	res, err := NewEngine(trial, opts, nil).Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Incomplete || res.ElapsedSec != 40 || res.Resolved != 1 {
		t.Fatalf("unexpected capped result: %+v", res)
	}
}

func TestEngineNoResolutionsReportsBaseline(t *testing.T) {
	trial := NewTrial("late", []Condition{NewCondition(0, 3, 50)})
	opts := Options{Profile: profile(2, 0, model.HighestSeverity, 0), Policy: model.ShowAll, MaxSeconds: 10}
	res, err := NewEngine(trial, opts, nil).Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.AvgAccuracy != 0.9 || res.AvgSpeedFactor != 1 || res.FinalFatigue != 0 {
		t.Fatalf("unexpected baseline result: %+v", res)
	}
}

func TestEngineManualAssign(t *testing.T) {
	trial := NewTrial("m", []Condition{NewCondition(0, 5, 0), NewCondition(0, 1, 0)})
	opts := Options{Profile: profile(2, 0, model.HighestSeverity, 0), Policy: model.ShowAll, Manual: true}
	e := NewEngine(trial, opts, nil)
	if err := e.Assign(0); err == nil {
		t.Fatalf("expected error assigning a hidden condition")
	}
	if err := e.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if _, ok := e.Session(); ok {
		t.Fatalf("manual engine must not pick a target on its own")
	}
	if err := e.Assign(1); err != nil {
		t.Fatalf("assign: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := e.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if e.Trial().Conditions[1].Visibility != Resolved {
		t.Fatalf("assigned condition not resolved: %+v", e.Trial().Conditions[1])
	}
	if e.Trial().Conditions[0].Visibility == Resolved {
		t.Fatalf("unassigned condition was worked")
	}
}

func TestEngineProperties(t *testing.T) {
	strategies := []model.Strategy{model.HighestSeverity, model.EarliestShown, model.PreemptOnHigherSeverity}
	for _, policy := range model.Policies {
		for _, strategy := range strategies {
			for seed := int64(1); seed <= 15; seed++ {
				rng := rand.New(rand.NewSource(seed))
				trial := randomTrial(rng, 8, 60)
				prof := profile(0.5+rng.Float64()*5, rng.Float64()*3, strategy, rng.Float64())
				checkInvariants(t, trial, Options{Profile: prof, Policy: policy, PauseSec: 5}, rng)
			}
		}
	}
}

func checkInvariants(t *testing.T, trial Trial, opts Options, rng *rand.Rand) {
	t.Helper()
	prevFatigue := 0.0
	opts.Observer = func(ti TickInfo) {
		if ti.Fatigue < prevFatigue || ti.Fatigue < 0 || ti.Fatigue > 1 || math.IsNaN(ti.Fatigue) {
			t.Fatalf("%s: fatigue %v after %v at %ds", opts.Policy, ti.Fatigue, prevFatigue, ti.Second)
		}
		if ti.Visible == 0 && ti.Fatigue != prevFatigue {
			t.Fatalf("%s: idle second %d accrued fatigue", opts.Policy, ti.Second)
		}
		prevFatigue = ti.Fatigue
	}
	e := NewEngine(trial, opts, jitterSource{rng})
	prev := e.Trial()
	for !e.Done() {
		if err := e.Step(); err != nil {
			t.Fatalf("%s/%s: step: %v", opts.Policy, opts.Profile.Strategy, err)
		}
		cur := e.Trial()
		for i, c := range cur.Conditions {
			p := prev.Conditions[i]
			if p.Visibility == Resolved && (c.Visibility != Resolved || c.ResolvedAtSec != p.ResolvedAtSec) {
				t.Fatalf("condition %d left resolved state", i)
			}
			if p.ShownAtSec != NotSet && c.ShownAtSec != p.ShownAtSec {
				t.Fatalf("condition %d ShownAtSec changed %d -> %d", i, p.ShownAtSec, c.ShownAtSec)
			}
			if c.Visibility == Resolved && !(c.ResolvedAtSec >= c.ShownAtSec && c.ShownAtSec >= c.ArrivalSec) {
				t.Fatalf("condition %d timestamps out of order: %+v", i, c)
			}
		}
		if opts.Policy != model.ShowAll && cur.ActiveCount() > 1 {
			t.Fatalf("%s shows %d conditions at %ds", opts.Policy, cur.ActiveCount(), e.Now())
		}
		prev = cur
	}
	res := e.Result()
	if res.Incomplete {
		t.Fatalf("%s/%s: trial did not finish within the cap: %+v", opts.Policy, opts.Profile.Strategy, res)
	}
	for _, v := range []float64{res.Harm, res.Score, res.AvgAccuracy, res.AvgSpeedFactor, res.NormalizedHarm} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite result: %+v", res)
		}
	}
}

func TestEngineCapsNonFiniteTaskTime(t *testing.T) {
	for _, base := range []float64{math.NaN(), math.Inf(1), 1e19} {
		trial := NewTrial("t", []Condition{NewCondition(0, 3, 0)})
		opts := Options{Profile: profile(base, 0, model.HighestSeverity, 0), Policy: model.ShowAll}
		res, err := NewEngine(trial, opts, nil).Run()
		if err != nil {
			t.Fatalf("base %v: run: %v", base, err)
		}
		if res.Incomplete || res.Resolved != 1 || res.ElapsedSec != MaxTrialSeconds {
			t.Fatalf("base %v: unexpected result %+v", base, res)
		}
		if math.IsNaN(res.Score) || math.IsNaN(res.FinalFatigue) || math.IsInf(res.Harm, 0) {
			t.Fatalf("base %v: non-finite readout %+v", base, res)
		}
	}
}
