package model

import (
	"fmt"
	"math"
	"strings"
)

// Policy selects which conditions are visible to the operator each second.
type Policy uint8

// Presentation policies. The zero value is SingleHighest, the fallback for
// unrecognized names.
const (
	SingleHighest Policy = iota
	ShowAll
	SeverityEscalation
	SeverityPause
)

// Policies lists every presentation policy in display order.
var Policies = []Policy{ShowAll, SingleHighest, SeverityEscalation, SeverityPause}

func (p Policy) String() string {
	switch p {
	case ShowAll:
		return "show-all"
	case SeverityEscalation:
		return "severity-escalation"
	case SeverityPause:
		return "severity-pause"
	default:
		return "single-highest"
	}
}

// Description returns a one-line summary of the policy.
func (p Policy) Description() string {
	switch p {
	case ShowAll:
		return "show every arrived, unresolved condition"
	case SeverityEscalation:
		return "show one condition; switch only to strictly higher severity"
	case SeverityPause:
		return "like severity-escalation, but hold each reveal for the pause window"
	default:
		return "show one condition at a time and never interrupt it"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode to
// SingleHighest.
func (p *Policy) UnmarshalText(text []byte) error {
	*p, _ = ParsePolicy(string(text))
	return nil
}

// ParsePolicy resolves a policy name. It accepts kebab-case names and the
// relay vocabulary (POLICY0, SEVERITY, SEVERITY_PAUSE). Unknown names fall back
// to SingleHighest with ok=false.
func ParsePolicy(name string) (Policy, bool) {
	switch normalizeName(name) {
	case "show-all", "showall":
		return ShowAll, true
	case "single-highest", "singlehighest", "policy0":
		return SingleHighest, true
	case "severity-escalation", "severityescalation", "severity":
		return SeverityEscalation, true
	case "severity-pause", "severitypause":
		return SeverityPause, true
	default:
		return SingleHighest, false
	}
}

// Strategy selects which visible condition the operator works on.
type Strategy uint8

// Selection strategies.
const (
	HighestSeverity Strategy = iota
	EarliestShown
	PreemptOnHigherSeverity
)

// Strategies lists every selection strategy in display order.
var Strategies = []Strategy{HighestSeverity, EarliestShown, PreemptOnHigherSeverity}

func (s Strategy) String() string {
	switch s {
	case EarliestShown:
		return "earliest-shown"
	case PreemptOnHigherSeverity:
		return "preempt-on-higher-severity"
	default:
		return "highest-severity"
	}
}

// Description returns a one-line summary of the strategy.
func (s Strategy) Description() string {
	switch s {
	case EarliestShown:
		return "work the condition that has been visible longest"
	case PreemptOnHigherSeverity:
		return "highest severity; abandon early work for a more severe condition"
	default:
		return "work the most severe visible condition"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy resolves a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch normalizeName(name) {
	case "highest-severity", "highest", "severity":
		return HighestSeverity, nil
	case "earliest-shown", "earliest", "fifo":
		return EarliestShown, nil
	case "preempt-on-higher-severity", "preempt":
		return PreemptOnHigherSeverity, nil
	default:
		return HighestSeverity, fmt.Errorf("unknown strategy %q", name)
	}
}

// HarmWeight maps a severity to its per-second harm weight.
type HarmWeight uint8

// Harm weighting modes. Squared is the default.
const (
	HarmSquared HarmWeight = iota
	HarmLinear
	HarmExp
)

func (w HarmWeight) String() string {
	switch w {
	case HarmLinear:
		return "linear"
	case HarmExp:
		return "exp"
	default:
		return "squared"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (w HarmWeight) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *HarmWeight) UnmarshalText(text []byte) error {
	parsed, err := ParseHarmWeight(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseHarmWeight resolves a harm weighting mode name.
func ParseHarmWeight(name string) (HarmWeight, error) {
	switch normalizeName(name) {
	case "", "squared":
		return HarmSquared, nil
	case "linear":
		return HarmLinear, nil
	case "exp":
		return HarmExp, nil
	default:
		return HarmSquared, fmt.Errorf("unknown harm weight %q", name)
	}
}

// Weight returns the harm weight of a severity, clamped to [0,5].
func (w HarmWeight) Weight(severity int) float64 {
	s := min(max(severity, 0), MaxSeverity)
	switch w {
	case HarmLinear:
		return float64(s)
	case HarmExp:
		return math.Exp2(float64(s))
	default:
		return float64(s * s)
	}
}

// Severity bounds.
const (
	MinSeverity = 1
	MaxSeverity = 5
)

var severityLabels = []string{"", "Informational", "Problem", "Warning", "Critical", "Panic"}

// SeverityLabel returns the display label for a severity.
func SeverityLabel(severity int) string {
	if severity < MinSeverity || severity > MaxSeverity {
		return "Unknown"
	}
	return severityLabels[severity]
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "_", "-")
}
