package sim

import (
	"fmt"
	"math"

	"github.com/verte-zerg/adamsim/internal/model"
)

// MaxTrialSeconds caps a trial; a capped trial is reported as incomplete.
const MaxTrialSeconds = 3600

// Rand draws task-time jitter uniformly in [0,maxSec).
type Rand interface {
	Jitter(maxSec float64) float64
}

// TickInfo describes one elapsed simulated second.
type TickInfo struct {
	Second  int
	Fatigue float64
	Visible int
	Target  int
}

// Options configures an Engine.
type Options struct {
	Profile    model.OperatorProfile
	Policy     model.Policy
	HarmWeight model.HarmWeight
	PauseSec   int
	MaxSeconds int
	// Manual disables the selection strategy; the target is set with Assign.
	Manual   bool
	Observer func(TickInfo)
}

// Engine drives one trial to completion on a logical clock. It is not safe
// for concurrent use.
//
// Within a second the presentation policy is applied before the operator's
// target is reconsidered: a target hidden by the policy is paused and
// re-selected, and only then is strategy preemption evaluated.
type Engine struct {
	trial Trial
	opts  Options
	rnd   Rand

	now      int
	working  bool
	session  Session
	paused   map[int]Session
	assigned int

	score    float64
	harm     float64
	accSum   float64
	speedSum float64
	resolved int
}

// NewEngine returns an engine that owns trial.
func NewEngine(trial Trial, opts Options, rnd Rand) *Engine {
	if opts.MaxSeconds <= 0 {
		opts.MaxSeconds = MaxTrialSeconds
	}
	return &Engine{
		trial:    trial,
		opts:     opts,
		rnd:      rnd,
		paused:   map[int]Session{},
		assigned: -1,
	}
}

// Now returns the current simulated second.
func (e *Engine) Now() int {
	return e.now
}

// Trial returns the current trial state.
func (e *Engine) Trial() Trial {
	return e.trial
}

// Session returns the open work session, if any.
func (e *Engine) Session() (Session, bool) {
	return e.session, e.working
}

// PausedSession returns the retained work of a preempted condition.
func (e *Engine) PausedSession(id int) (Session, bool) {
	s, ok := e.paused[id]
	return s, ok
}

// Done reports whether the trial is fully resolved or capped.
func (e *Engine) Done() bool {
	return e.trial.AllResolved() || e.now >= e.opts.MaxSeconds
}

// Run steps the trial until Done and returns its result.
func (e *Engine) Run() (model.TrialResult, error) {
	for !e.Done() {
		if err := e.Step(); err != nil {
			return model.TrialResult{}, err
		}
	}
	return e.Result(), nil
}

// Step advances the trial by one decision point. Every call either consumes
// exactly one simulated second or returns because the trial is done.
func (e *Engine) Step() error {
	if e.Done() {
		return nil
	}
	if !e.working {
		if err := e.present(); err != nil {
			return err
		}
		id, ok := e.pickTarget()
		if !ok {
			e.tick(-1)
			return e.present()
		}
		e.open(id)
	}

	e.tick(e.session.ConditionID)
	e.session.Remaining--
	if e.session.Remaining <= 0 {
		if err := e.resolve(); err != nil {
			return err
		}
		return e.present()
	}
	if err := e.present(); err != nil {
		return err
	}
	e.reconsider()
	return nil
}

// Assign makes id the operator's target in manual mode, pausing any other
// open session.
func (e *Engine) Assign(id int) error {
	if !e.opts.Manual {
		return fmt.Errorf("assign condition %d: engine is not in manual mode", id)
	}
	if id < 0 || id >= len(e.trial.Conditions) {
		return fmt.Errorf("assign condition %d: %w", id, ErrUnknownCondition)
	}
	if !e.trial.Conditions[id].Active() {
		return fmt.Errorf("assign condition %d: %w", id, ErrNotShown)
	}
	if e.working && e.session.ConditionID == id {
		return nil
	}
	if e.working {
		e.pause()
	}
	e.assigned = id
	e.open(id)
	return nil
}

// Result summarizes the trial in its current state.
func (e *Engine) Result() model.TrialResult {
	accuracy, speed := BaselineAccuracy, 1.0
	if e.resolved > 0 {
		accuracy = e.accSum / float64(e.resolved)
		speed = e.speedSum / float64(e.resolved)
	}
	total := len(e.trial.Conditions)
	normalized := 0.0
	if e.now > 0 && total > 0 {
		worst := e.opts.HarmWeight.Weight(model.MaxSeverity) * float64(e.now) * float64(total)
		normalized = clamp01(e.harm / worst)
	}
	return model.TrialResult{
		Operator:       e.opts.Profile.Name,
		Policy:         e.opts.Policy,
		Strategy:       e.opts.Profile.Strategy,
		ElapsedSec:     e.now,
		FinalFatigue:   e.trial.Fatigue,
		AvgAccuracy:    accuracy,
		AvgSpeedFactor: speed,
		Resolved:       e.resolved,
		Total:          total,
		Harm:           e.harm,
		NormalizedHarm: normalized,
		Score:          e.score,
		Incomplete:     !e.trial.AllResolved(),
	}
}

func (e *Engine) present() error {
	for _, ev := range Present(e.opts.Policy, e.trial, e.now, e.opts.PauseSec) {
		next, err := e.trial.Apply(ev)
		if err != nil {
			return fmt.Errorf("apply %s policy at %ds: %w", e.opts.Policy, e.now, err)
		}
		e.trial = next
	}
	return nil
}

func (e *Engine) pickTarget() (int, bool) {
	if !e.opts.Manual {
		return Pick(e.opts.Profile.Strategy, e.trial)
	}
	if e.assigned >= 0 && e.trial.Conditions[e.assigned].Active() {
		return e.assigned, true
	}
	return 0, false
}

func (e *Engine) tick(target int) {
	visible := e.trial.ActiveCount()
	e.trial.Fatigue = Accrue(e.trial.Fatigue, e.trial.Conditions)
	e.now++
	if e.opts.Observer != nil {
		e.opts.Observer(TickInfo{
			Second:  e.now,
			Fatigue: e.trial.Fatigue,
			Visible: visible,
			Target:  target,
		})
	}
}

func (e *Engine) open(id int) {
	if s, ok := e.paused[id]; ok {
		delete(e.paused, id)
		e.session = s
		e.working = true
		return
	}
	jitter := 0.0
	if e.rnd != nil {
		jitter = e.rnd.Jitter(e.opts.Profile.TaskTimeJitter)
	}
	d := TaskSeconds(e.opts.Profile.BaseTaskTimeSec, jitter, SpeedFactor(e.trial.Fatigue))
	e.session = Session{ConditionID: id, Remaining: d, Initial: d}
	e.working = true
}

func (e *Engine) pause() {
	e.paused[e.session.ConditionID] = e.session
	e.working = false
}

func (e *Engine) reconsider() {
	if !e.trial.Conditions[e.session.ConditionID].Active() {
		e.pause()
		return
	}
	if e.opts.Manual {
		return
	}
	id, ok := Preempt(e.opts.Profile.Strategy, e.trial, e.session, e.opts.Profile.PreemptThreshold)
	if !ok {
		return
	}
	e.pause()
	e.open(id)
}

func (e *Engine) resolve() error {
	id := e.session.ConditionID
	next, err := e.trial.Apply(Event{Kind: EventResolve, ConditionID: id, AtSec: e.now})
	if err != nil {
		return err
	}
	e.trial = next
	e.working = false
	e.session = Session{}
	delete(e.paused, id)
	if e.assigned == id {
		e.assigned = -1
	}

	c := e.trial.Conditions[id]
	sev := float64(c.Severity)
	onScreen := math.Max(1, float64(c.ResolvedAtSec-c.ShownAtSec))
	e.score += sev * sev * sev / onScreen
	e.harm += float64(c.ResolvedAtSec-c.ArrivalSec) * e.opts.HarmWeight.Weight(c.Severity)
	e.accSum += Accuracy(e.trial.Fatigue)
	e.speedSum += SpeedFactor(e.trial.Fatigue)
	e.resolved++
	return nil
}
