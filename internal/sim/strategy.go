package sim

import (
	"math"

	"github.com/verte-zerg/adamsim/internal/model"
)

// Session is the open unit of work on one condition. Sessions live in the
// engine, keyed by condition ID, so a preempted condition keeps its progress.
type Session struct {
	ConditionID int
	Remaining   int
	Initial     int
}

// Progress is the completed fraction of the session.
func (s Session) Progress() float64 {
	if s.Initial <= 0 {
		return 1
	}
	return 1 - float64(s.Remaining)/float64(s.Initial)
}

// TaskSeconds is the whole-second duration of a new work session:
// ceil(max(0.5, (base+jitter) / max(0.1, speed))), capped at MaxTrialSeconds.
func TaskSeconds(baseSec, jitterSec, speedFactor float64) int {
	d := (baseSec + jitterSec) / math.Max(0.1, speedFactor)
	if math.IsNaN(d) || d > MaxTrialSeconds {
		return MaxTrialSeconds
	}
	return int(math.Ceil(math.Max(0.5, d)))
}

// Pick chooses the condition the operator starts working on among the shown,
// unresolved ones.
func Pick(s model.Strategy, t Trial) (int, bool) {
	var better func(a, b Condition) bool
	switch s {
	case model.EarliestShown:
		better = shownEarlier
	case model.HighestSeverity, model.PreemptOnHigherSeverity:
		better = moreSevere
	default:
		better = moreSevere
	}
	best := -1
	for _, c := range t.Conditions {
		if !c.Active() {
			continue
		}
		if best < 0 || better(c, t.Conditions[best]) {
			best = c.ID
		}
	}
	return best, best >= 0
}

// Preempt reports the condition the operator switches to mid-session, if
// any. Only PreemptOnHigherSeverity preempts: it switches when another shown
// condition has strictly higher severity than the current target and less
// than threshold of the current session has been completed.
func Preempt(s model.Strategy, t Trial, current Session, threshold float64) (int, bool) {
	if s != model.PreemptOnHigherSeverity || current.Progress() >= threshold {
		return 0, false
	}
	target := t.Conditions[current.ConditionID]
	best := -1
	for _, c := range t.Conditions {
		if !c.Active() || c.ID == target.ID || c.Severity <= target.Severity {
			continue
		}
		if best < 0 || moreSevere(c, t.Conditions[best]) {
			best = c.ID
		}
	}
	return best, best >= 0
}

func moreSevere(a, b Condition) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.ShownAtSec != b.ShownAtSec {
		return a.ShownAtSec < b.ShownAtSec
	}
	return a.ID < b.ID
}

func shownEarlier(a, b Condition) bool {
	if a.ShownAtSec != b.ShownAtSec {
		return a.ShownAtSec < b.ShownAtSec
	}
	return a.ID < b.ID
}
