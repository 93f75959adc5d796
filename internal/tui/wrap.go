package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/adamsim/internal/sim"
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

var (
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	hiddenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	resolvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))

	// severityStyles is indexed by severity.
	severityStyles = []lipgloss.Style{
		lipgloss.NewStyle(),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#8CB4D8")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FADB14")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FA8C16")).Bold(true),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true),
	}
)

// buildStrip renders one glyph per condition: '.' not yet arrived, a dim
// severity digit while hidden, a colored digit while shown and a check mark
// once resolved. The operator's target is underlined.
func buildStrip(trial sim.Trial, now, target int) []styledRune {
	out := make([]styledRune, 0, len(trial.Conditions)*2)
	for i, c := range trial.Conditions {
		if i > 0 {
			out = append(out, styledRune{s: " ", width: 1, isSpace: true})
		}
		out = append(out, conditionGlyph(c, now, c.ID == target))
	}
	return out
}

func conditionGlyph(c sim.Condition, now int, isTarget bool) styledRune {
	glyph := strconv.Itoa(c.Severity)
	var style lipgloss.Style
	switch {
	case c.Visibility == sim.Resolved:
		glyph = "✓"
		style = resolvedStyle
	case c.Active():
		style = severityStyle(c.Severity)
	case !c.Arrived(now):
		glyph = "."
		style = pendingStyle
	default:
		style = hiddenStyle
	}
	if isTarget {
		style = style.Underline(true)
	}
	return styledRune{
		s:     style.Render(glyph),
		width: runewidth.StringWidth(glyph),
	}
}

func severityStyle(severity int) lipgloss.Style {
	if severity < 0 || severity >= len(severityStyles) {
		return hiddenStyle
	}
	return severityStyles[severity]
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapStyledRunes breaks runes into lines of at most width cells, preferring
// to break at spaces. A non-positive width disables wrapping.
func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpaceIdx]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
