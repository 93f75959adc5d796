// Package sim implements the single-trial alarm simulation: condition state
// transitions, the fatigue model, presentation policies, operator selection
// strategies and the engine that drives a trial second by second.
package sim

import (
	"errors"
	"fmt"
)

// Visibility is the display state of a condition.
type Visibility uint8

// Visibility states. Resolved is terminal.
const (
	Hidden Visibility = iota
	Shown
	Resolved
)

func (v Visibility) String() string {
	switch v {
	case Shown:
		return "shown"
	case Resolved:
		return "resolved"
	default:
		return "hidden"
	}
}

// NotSet marks a timestamp that has not been recorded yet.
const NotSet = -1

// Transition errors. They indicate a caller defect, never a normal outcome.
var (
	ErrNotArrived       = errors.New("condition has not arrived")
	ErrResolved         = errors.New("condition already resolved")
	ErrNotShown         = errors.New("condition is not shown")
	ErrUnknownCondition = errors.New("unknown condition")
)

// Condition is a single alarm instance. Values are never mutated in place;
// Transition returns an updated copy.
type Condition struct {
	ID            int
	Severity      int
	ArrivalSec    int
	Visibility    Visibility
	ShownAtSec    int
	RevealedAtSec int
	ResolvedAtSec int
}

// NewCondition returns a hidden condition with unset timestamps.
func NewCondition(id, severity, arrivalSec int) Condition {
	return Condition{
		ID:            id,
		Severity:      severity,
		ArrivalSec:    arrivalSec,
		Visibility:    Hidden,
		ShownAtSec:    NotSet,
		RevealedAtSec: NotSet,
		ResolvedAtSec: NotSet,
	}
}

// Arrived reports whether the condition is eligible to be shown at now.
func (c Condition) Arrived(now int) bool {
	return c.ArrivalSec <= now
}

// Active reports whether the condition is shown and unresolved.
func (c Condition) Active() bool {
	return c.Visibility == Shown
}

// Ordinal is the one-based display number of the condition.
func (c Condition) Ordinal() int {
	return c.ID + 1
}

// EventKind identifies a condition transition.
type EventKind uint8

// Transition events.
const (
	EventShow EventKind = iota
	EventHide
	EventResolve
)

func (k EventKind) String() string {
	switch k {
	case EventHide:
		return "hide"
	case EventResolve:
		return "resolve"
	default:
		return "show"
	}
}

// Event is a requested transition of one condition at a simulated second.
type Event struct {
	Kind        EventKind
	ConditionID int
	AtSec       int
}

// Transition applies ev to c and returns the resulting condition.
//
// Show is idempotent on an already shown condition and records ShownAtSec only
// on the first reveal. Hide keeps ShownAtSec. Resolve requires a shown
// condition and is terminal.
func Transition(c Condition, ev Event) (Condition, error) {
	if c.Visibility == Resolved {
		return c, fmt.Errorf("%s condition %d: %w", ev.Kind, c.ID, ErrResolved)
	}
	switch ev.Kind {
	case EventShow:
		if !c.Arrived(ev.AtSec) {
			return c, fmt.Errorf("show condition %d at %ds: %w", c.ID, ev.AtSec, ErrNotArrived)
		}
		if c.Visibility == Shown {
			return c, nil
		}
		c.Visibility = Shown
		if c.ShownAtSec == NotSet {
			c.ShownAtSec = ev.AtSec
		}
		c.RevealedAtSec = ev.AtSec
		return c, nil
	case EventHide:
		c.Visibility = Hidden
		return c, nil
	case EventResolve:
		if c.Visibility != Shown {
			return c, fmt.Errorf("resolve condition %d: %w", c.ID, ErrNotShown)
		}
		c.Visibility = Resolved
		c.ResolvedAtSec = ev.AtSec
		return c, nil
	default:
		return c, fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}
