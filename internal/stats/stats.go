// Package stats renders Monte Carlo summaries, trial timelines and saved run
// history as text, JSON or YAML.
package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/adamsim/internal/model"
	"github.com/verte-zerg/adamsim/internal/sim"
)

// RenderSummaries prints the run header and one row per compared policy.
func RenderSummaries(w io.Writer, out model.RunOutput) error {
	p := out.Profile
	if _, err := fmt.Fprintf(w, "Run %s  seed=%d  trials=%d\n", out.ID, out.Seed, out.Trials); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Operator %s: %s, task %.1fs+%.1fs jitter", p.Name, p.Strategy, p.BaseTaskTimeSec, p.TaskTimeJitter); err != nil {
		return err
	}
	if p.Strategy == model.PreemptOnHigherSeverity {
		if _, err := fmt.Fprintf(w, ", preempt below %.0f%%", p.PreemptThreshold*100); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\nConditions %d over %ds, harm weight %s\n\n", out.Params.Conditions, out.Params.HorizonSec, out.Params.HarmWeight); err != nil {
		return err
	}
	if err := renderSummaryTable(w, out.Summaries); err != nil {
		return err
	}
	if best, ok := lowestHarm(out.Summaries); ok {
		if _, err := fmt.Fprintf(w, "\nLowest mean harm: %s\n", best); err != nil {
			return err
		}
	}
	return nil
}

func renderSummaryTable(w io.Writer, summaries []model.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No policies compared.")
		return err
	}
	headers := []string{"Policy", "Trials", "Capped", "Elapsed s (mean/p50/p90)", "Fatigue (mean/p90)", "Accuracy", "Harm (mean/p50/p90)", "Score"}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Policy.String(),
			strconv.Itoa(s.Count),
			strconv.Itoa(s.Incomplete),
			triple(s.ElapsedSec, "%.1f"),
			fmt.Sprintf("%.3f/%.3f", s.Fatigue.Mean, s.Fatigue.P90),
			fmt.Sprintf("%.2f%%", s.Accuracy.Mean*100),
			triple(s.Harm, "%.1f"),
			fmt.Sprintf("%.2f", s.Score.Mean),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

func triple(m model.MetricSummary, verb string) string {
	return fmt.Sprintf(verb+"/"+verb+"/"+verb, m.Mean, m.P50, m.P90)
}

func lowestHarm(summaries []model.Summary) (model.Policy, bool) {
	if len(summaries) < 2 {
		return 0, false
	}
	best := summaries[0]
	for _, s := range summaries[1:] {
		if s.Harm.Mean < best.Harm.Mean {
			best = s
		}
	}
	return best.Policy, true
}

// RenderTrials prints every trial result, one row each.
func RenderTrials(w io.Writer, results []model.TrialResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No trials.")
		return err
	}
	headers := []string{"Policy", "Seed", "Elapsed", "Resolved", "Fatigue", "Accuracy", "Speed", "Harm", "Norm", "Score", ""}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		flag := ""
		if r.Incomplete {
			flag = "capped"
		}
		rows = append(rows, []string{
			r.Policy.String(),
			strconv.FormatInt(r.Seed, 10),
			fmt.Sprintf("%ds", r.ElapsedSec),
			fmt.Sprintf("%d/%d", r.Resolved, r.Total),
			fmt.Sprintf("%.3f", r.FinalFatigue),
			fmt.Sprintf("%.2f%%", r.AvgAccuracy*100),
			fmt.Sprintf("%.3f", r.AvgSpeedFactor),
			fmt.Sprintf("%.1f", r.Harm),
			fmt.Sprintf("%.3f", r.NormalizedHarm),
			fmt.Sprintf("%.2f", r.Score),
			flag,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true}
	if _, err := fmt.Fprintln(w, "Trials"); err != nil {
		return err
	}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

// RenderResult prints a single trial result as labeled lines.
func RenderResult(w io.Writer, r model.TrialResult) error {
	status := "all conditions resolved"
	if r.Incomplete {
		status = fmt.Sprintf("capped with %d unresolved", r.Total-r.Resolved)
	}
	lines := []string{
		fmt.Sprintf("Policy:        %s", r.Policy),
		fmt.Sprintf("Strategy:      %s", r.Strategy),
		fmt.Sprintf("Seed:          %d", r.Seed),
		fmt.Sprintf("Elapsed:       %ds (%s)", r.ElapsedSec, status),
		fmt.Sprintf("Final fatigue: %.3f", r.FinalFatigue),
		fmt.Sprintf("Avg accuracy:  %.2f%%", r.AvgAccuracy*100),
		fmt.Sprintf("Avg speed:     %.3f", r.AvgSpeedFactor),
		fmt.Sprintf("Harm:          %.1f (normalized %.3f)", r.Harm, r.NormalizedHarm),
		fmt.Sprintf("Score:         %.2f", r.Score),
	}
	return writeLines(w, lines)
}

// RenderTimeline prints when each condition arrived, was first shown and was
// resolved.
func RenderTimeline(w io.Writer, trial sim.Trial) error {
	headers := []string{"ID", "Severity", "Arrived", "Shown", "Resolved", "Wait", "Delay"}
	rows := make([][]string, 0, len(trial.Conditions))
	for _, c := range trial.Conditions {
		wait, delay := "-", "-"
		if c.ShownAtSec != sim.NotSet {
			wait = fmt.Sprintf("%ds", c.ShownAtSec-c.ArrivalSec)
		}
		if c.ResolvedAtSec != sim.NotSet {
			delay = fmt.Sprintf("%ds", c.ResolvedAtSec-c.ArrivalSec)
		}
		rows = append(rows, []string{
			strconv.Itoa(c.Ordinal()),
			fmt.Sprintf("%d %s", c.Severity, model.SeverityLabel(c.Severity)),
			fmt.Sprintf("%ds", c.ArrivalSec),
			secondOrDash(c.ShownAtSec),
			secondOrDash(c.ResolvedAtSec),
			wait,
			delay,
		})
	}
	rightAlign := map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	if _, err := fmt.Fprintln(w, "Conditions"); err != nil {
		return err
	}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

func secondOrDash(sec int) string {
	if sec == sim.NotSet {
		return "-"
	}
	return fmt.Sprintf("%ds", sec)
}

// RenderPolicies lists the presentation policies and selection strategies.
func RenderPolicies(w io.Writer) error {
	rows := make([][]string, 0, len(model.Policies))
	for _, p := range model.Policies {
		rows = append(rows, []string{p.String(), p.Description()})
	}
	if _, err := fmt.Fprintln(w, "Presentation policies"); err != nil {
		return err
	}
	if err := writeLines(w, formatTable([]string{"Name", "Behavior"}, rows, nil)); err != nil {
		return err
	}
	rows = rows[:0]
	for _, s := range model.Strategies {
		rows = append(rows, []string{s.String(), s.Description()})
	}
	if _, err := fmt.Fprintln(w, "\nSelection strategies"); err != nil {
		return err
	}
	return writeLines(w, formatTable([]string{"Name", "Behavior"}, rows, nil))
}
