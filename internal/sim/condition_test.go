package sim

import (
	"errors"
	"testing"
)

func TestTransitionShowRecordsFirstReveal(t *testing.T) {
	c := NewCondition(0, 3, 5)
	if _, err := Transition(c, Event{Kind: EventShow, AtSec: 4}); !errors.Is(err, ErrNotArrived) {
		t.Fatalf("expected ErrNotArrived, got %v", err)
	}
	shown, err := Transition(c, Event{Kind: EventShow, AtSec: 6})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.Visibility != Shown || shown.ShownAtSec != 6 || shown.RevealedAtSec != 6 {
		t.Fatalf("unexpected shown condition: %+v", shown)
	}
	again, err := Transition(shown, Event{Kind: EventShow, AtSec: 9})
	if err != nil {
		t.Fatalf("show again: %v", err)
	}
	if again != shown {
		t.Fatalf("show should be idempotent, got %+v", again)
	}

	hidden, err := Transition(shown, Event{Kind: EventHide, AtSec: 10})
	if err != nil {
		t.Fatalf("hide: %v", err)
	}
	if hidden.Visibility != Hidden || hidden.ShownAtSec != 6 {
		t.Fatalf("hide must keep ShownAtSec: %+v", hidden)
	}
	reshown, err := Transition(hidden, Event{Kind: EventShow, AtSec: 12})
	if err != nil {
		t.Fatalf("reshow: %v", err)
	}
	if reshown.ShownAtSec != 6 || reshown.RevealedAtSec != 12 {
		t.Fatalf("unexpected timestamps after reshow: %+v", reshown)
	}
}

func TestTransitionResolveIsTerminal(t *testing.T) {
	c := NewCondition(2, 4, 0)
	if _, err := Transition(c, Event{Kind: EventResolve, AtSec: 1}); !errors.Is(err, ErrNotShown) {
		t.Fatalf("expected ErrNotShown, got %v", err)
	}
	c, _ = Transition(c, Event{Kind: EventShow, AtSec: 0})
	done, err := Transition(c, Event{Kind: EventResolve, AtSec: 3})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if done.Visibility != Resolved || done.ResolvedAtSec != 3 {
		t.Fatalf("unexpected resolved condition: %+v", done)
	}
	for _, kind := range []EventKind{EventShow, EventHide, EventResolve} {
		next, err := Transition(done, Event{Kind: kind, AtSec: 4})
		if !errors.Is(err, ErrResolved) {
			t.Fatalf("%s on resolved: expected ErrResolved, got %v", kind, err)
		}
		if next != done {
			t.Fatalf("%s on resolved changed the condition: %+v", kind, next)
		}
	}
}

func TestTrialApplyCopiesConditions(t *testing.T) {
	trial := NewTrial("t", []Condition{NewCondition(7, 1, 0), NewCondition(7, 2, 0)})
	if trial.Conditions[1].ID != 1 {
		t.Fatalf("expected IDs reassigned to positions, got %d", trial.Conditions[1].ID)
	}
	next, err := trial.Apply(Event{Kind: EventShow, ConditionID: 1, AtSec: 0})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if trial.Conditions[1].Visibility != Hidden {
		t.Fatalf("original trial was mutated")
	}
	if next.Conditions[1].Visibility != Shown {
		t.Fatalf("expected condition shown in new trial")
	}
	if _, err := trial.Apply(Event{Kind: EventShow, ConditionID: 5}); !errors.Is(err, ErrUnknownCondition) {
		t.Fatalf("expected ErrUnknownCondition, got %v", err)
	}
}
