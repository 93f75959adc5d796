package sim

import "github.com/verte-zerg/adamsim/internal/model"

// Present decides the visibility changes policy p makes at second now. It is
// pure and idempotent: applying the returned events and calling Present again
// at the same second yields no further events.
//
// Ranking for every policy is higher severity first, then earlier arrival.
// pauseSec is only consulted by SeverityPause.
func Present(p model.Policy, t Trial, now, pauseSec int) []Event {
	switch p {
	case model.ShowAll:
		return presentAll(t, now)
	case model.SeverityEscalation:
		return presentEscalating(t, now, 0)
	case model.SeverityPause:
		return presentEscalating(t, now, pauseSec)
	case model.SingleHighest:
		return presentSingle(t, now)
	default:
		return presentSingle(t, now)
	}
}

func presentAll(t Trial, now int) []Event {
	var events []Event
	for _, c := range t.Conditions {
		if c.Visibility == Hidden && c.Arrived(now) {
			events = append(events, Event{Kind: EventShow, ConditionID: c.ID, AtSec: now})
		}
	}
	return events
}

func presentSingle(t Trial, now int) []Event {
	if t.ActiveCount() > 0 {
		return nil
	}
	best, ok := bestRanked(t, now, func(c Condition) bool { return c.Visibility == Hidden })
	if !ok {
		return nil
	}
	return []Event{{Kind: EventShow, ConditionID: best.ID, AtSec: now}}
}

func presentEscalating(t Trial, now, holdSec int) []Event {
	best, ok := bestRanked(t, now, func(c Condition) bool { return c.Visibility != Resolved })
	if !ok {
		return nil
	}
	current, shown := bestRanked(t, now, Condition.Active)
	if !shown {
		return []Event{{Kind: EventShow, ConditionID: best.ID, AtSec: now}}
	}
	if best.Severity <= current.Severity {
		return nil
	}
	if holdSec > 0 && now-current.RevealedAtSec < holdSec {
		return nil
	}
	return []Event{
		{Kind: EventHide, ConditionID: current.ID, AtSec: now},
		{Kind: EventShow, ConditionID: best.ID, AtSec: now},
	}
}

// bestRanked returns the arrived condition matching keep that ranks first.
func bestRanked(t Trial, now int, keep func(Condition) bool) (Condition, bool) {
	var best Condition
	found := false
	for _, c := range t.Conditions {
		if !c.Arrived(now) || !keep(c) {
			continue
		}
		if !found || outranks(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func outranks(a, b Condition) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.ArrivalSec != b.ArrivalSec {
		return a.ArrivalSec < b.ArrivalSec
	}
	return a.ID < b.ID
}
