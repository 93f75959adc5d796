package sim

import (
	"fmt"
	"math"

	"github.com/verte-zerg/adamsim/internal/model"
)

// Fatigue model constants.
const (
	FatigueTimeConstant = 240.0
	FatigueExponent     = 2.0
	BaselineAccuracy    = 0.9
	tickSeconds         = 1.0
)

// Trial is the fixed set of conditions of one episode plus the operator's
// accumulated fatigue.
type Trial struct {
	Name       string
	Conditions []Condition
	Fatigue    float64
}

// NewTrial builds a trial from conditions; IDs are reassigned to positions.
func NewTrial(name string, conditions []Condition) Trial {
	conds := make([]Condition, len(conditions))
	for i, c := range conditions {
		c.ID = i
		conds[i] = c
	}
	return Trial{Name: name, Conditions: conds}
}

// Apply returns a copy of the trial with ev applied to its condition.
func (t Trial) Apply(ev Event) (Trial, error) {
	if ev.ConditionID < 0 || ev.ConditionID >= len(t.Conditions) {
		return t, fmt.Errorf("%s condition %d: %w", ev.Kind, ev.ConditionID, ErrUnknownCondition)
	}
	next, err := Transition(t.Conditions[ev.ConditionID], ev)
	if err != nil {
		return t, err
	}
	conds := make([]Condition, len(t.Conditions))
	copy(conds, t.Conditions)
	conds[ev.ConditionID] = next
	t.Conditions = conds
	return t, nil
}

// AllResolved reports whether every condition is resolved.
func (t Trial) AllResolved() bool {
	for _, c := range t.Conditions {
		if c.Visibility != Resolved {
			return false
		}
	}
	return true
}

// ActiveCount returns the number of shown, unresolved conditions.
func (t Trial) ActiveCount() int {
	n := 0
	for _, c := range t.Conditions {
		if c.Active() {
			n++
		}
	}
	return n
}

// ResolvedCount returns the number of resolved conditions.
func (t Trial) ResolvedCount() int {
	n := 0
	for _, c := range t.Conditions {
		if c.Visibility == Resolved {
			n++
		}
	}
	return n
}

// Accrue integrates one second of fatigue from the shown conditions:
// f + dt/T * sum((severity/5)^2), clamped to [0,1]. There is no recovery term.
func Accrue(fatigue float64, conditions []Condition) float64 {
	var load float64
	for _, c := range conditions {
		if !c.Active() {
			continue
		}
		load += math.Pow(float64(c.Severity)/model.MaxSeverity, FatigueExponent)
	}
	return clamp01(fatigue + tickSeconds/FatigueTimeConstant*load)
}

// Accuracy is the operator's response accuracy at the given fatigue.
func Accuracy(fatigue float64) float64 {
	return BaselineAccuracy * (1 - fatigue)
}

// SpeedFactor is the operator's work speed multiplier at the given fatigue.
func SpeedFactor(fatigue float64) float64 {
	return 1 - fatigue
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
