// Package tui provides the Bubble Tea alarm-handling game. The player takes the
// place of the selection strategy while the clock runs one simulated second
// per tick.
package tui

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/adamsim/internal/generator"
	"github.com/verte-zerg/adamsim/internal/model"
	"github.com/verte-zerg/adamsim/internal/sim"
	"github.com/verte-zerg/adamsim/internal/stats"
)

// DefaultInterval is the wall-clock length of one simulated second.
const DefaultInterval = 500 * time.Millisecond

// Config configures a play session.
type Config struct {
	Profile  model.OperatorProfile
	Params   model.TrialParams
	Policy   model.Policy
	Seed     int64
	Interval time.Duration
}

type tickMsg struct {
	clock int
}

// Model implements the Bubble Tea game UI.
type Model struct {
	cfg    Config
	seed   int64
	engine *sim.Engine

	// clock invalidates in-flight ticks after a pause or restart.
	clock  int
	paused bool

	table  table.Model
	rowIDs []int

	result *model.TrialResult
	played []model.TrialResult
	status string

	width  int
	height int
}

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	resultStyle = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#C89A3A"))
)

// NewModel constructs a game model and starts the first trial.
func NewModel(cfg Config) *Model {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	m := &Model{cfg: cfg, table: newConditionTable()}
	m.restart(cfg.Seed)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(max(20, msg.Width-4))
		m.table.SetHeight(max(3, msg.Height-10))
		return m, nil
	case tickMsg:
		if msg.clock != m.clock || m.paused || m.result != nil {
			return m, nil
		}
		return m, m.advance()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			m.assignSelected()
			return m, nil
		case " ":
			if m.result != nil {
				return m, nil
			}
			m.paused = !m.paused
			m.clock++
			if m.paused {
				return m, nil
			}
			return m, m.tick()
		case "r":
			m.restart(time.Now().UnixNano())
			return m, m.tick()
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	if m.result != nil {
		body = m.renderResult()
	} else {
		sections := []string{
			m.renderHeader(),
			m.renderStrip(),
			m.table.View(),
		}
		if m.status != "" {
			sections = append(sections, statusStyle.Render(m.status))
		}
		body = strings.Join(sections, "\n\n")
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return body + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	main := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, body)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return main + "\n" + footerLine
}

func (m *Model) tick() tea.Cmd {
	clock := m.clock
	return tea.Tick(m.cfg.Interval, func(time.Time) tea.Msg {
		return tickMsg{clock: clock}
	})
}

func (m *Model) restart(seed int64) {
	gen := generator.New(seed)
	m.seed = gen.Seed()
	trial := gen.Trial(fmt.Sprintf("play-%d", m.seed), m.cfg.Params)
	m.engine = sim.NewEngine(trial, sim.Options{
		Profile:    m.cfg.Profile,
		Policy:     m.cfg.Policy,
		HarmWeight: m.cfg.Params.HarmWeight,
		PauseSec:   m.cfg.Params.PauseSec,
		Manual:     true,
	}, gen)
	m.clock++
	m.paused = false
	m.result = nil
	m.status = ""
	m.refreshRows()
}

// advance steps the engine by one second and schedules the next tick unless
// the trial ended.
func (m *Model) advance() tea.Cmd {
	if err := m.engine.Step(); err != nil {
		m.status = err.Error()
		m.paused = true
		return nil
	}
	if m.engine.Done() {
		res := m.engine.Result()
		res.Seed = m.seed
		m.result = &res
		m.played = append(m.played, res)
		return nil
	}
	m.refreshRows()
	return m.tick()
}

func (m *Model) assignSelected() {
	if m.result != nil || len(m.rowIDs) == 0 {
		return
	}
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.rowIDs) {
		return
	}
	if err := m.engine.Assign(m.rowIDs[cursor]); err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
	m.refreshRows()
}

func newConditionTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Severity", Width: 16},
			{Title: "Waiting", Width: 8},
			{Title: "Work", Width: 18},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#3A3A3A")).
		Bold(true)
	t.SetStyles(styles)
	return t
}

// refreshRows lists the shown conditions, most severe first.
func (m *Model) refreshRows() {
	trial := m.engine.Trial()
	now := m.engine.Now()
	shown := make([]sim.Condition, 0, len(trial.Conditions))
	for _, c := range trial.Conditions {
		if c.Active() {
			shown = append(shown, c)
		}
	}
	sort.SliceStable(shown, func(i, j int) bool {
		if shown[i].Severity != shown[j].Severity {
			return shown[i].Severity > shown[j].Severity
		}
		return shown[i].ArrivalSec < shown[j].ArrivalSec
	})

	rows := make([]table.Row, 0, len(shown))
	m.rowIDs = m.rowIDs[:0]
	for _, c := range shown {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", c.Ordinal()),
			fmt.Sprintf("%d %s", c.Severity, model.SeverityLabel(c.Severity)),
			fmt.Sprintf("%ds", now-c.ArrivalSec),
			m.workLabel(c.ID),
		})
		m.rowIDs = append(m.rowIDs, c.ID)
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) workLabel(id int) string {
	if s, ok := m.engine.Session(); ok && s.ConditionID == id {
		return fmt.Sprintf("working %ds left", s.Remaining)
	}
	if s, ok := m.engine.PausedSession(id); ok {
		return fmt.Sprintf("paused %ds left", s.Remaining)
	}
	return ""
}

func (m *Model) target() int {
	if s, ok := m.engine.Session(); ok {
		return s.ConditionID
	}
	return -1
}

func (m *Model) renderHeader() string {
	trial := m.engine.Trial()
	f := trial.Fatigue
	line := fmt.Sprintf("%s  t=%ds  fatigue %.3f  accuracy %.1f%%  speed %.2f  resolved %d/%d",
		m.cfg.Policy, m.engine.Now(), f, sim.Accuracy(f)*100, sim.SpeedFactor(f),
		trial.ResolvedCount(), len(trial.Conditions))
	header := headerStyle.Render(line)
	if m.paused {
		header += "  " + pausedStyle.Render("PAUSED")
	}
	return header
}

func (m *Model) renderStrip() string {
	strip := buildStrip(m.engine.Trial(), m.engine.Now(), m.target())
	width := 0
	if m.width > 0 {
		width = int(float64(m.width) * 0.70)
	}
	return wrapStyledRunes(strip, width)
}

func (m *Model) renderResult() string {
	var buf bytes.Buffer
	if err := stats.RenderResult(&buf, *m.result); err != nil {
		return err.Error()
	}
	title := headerStyle.Render("Trial over")
	return resultStyle.Render(title + "\n\n" + strings.TrimRight(buf.String(), "\n"))
}

func (m *Model) renderFooter() string {
	segments := []string{"↑/↓ select", "enter work", "space pause", "r new trial", "q quit"}
	if n := len(m.played); n > 0 {
		last := m.played[n-1]
		segments = append(segments, fmt.Sprintf("Last harm %.1f · score %.2f", last.Harm, last.Score))
		var harm float64
		for _, r := range m.played {
			harm += r.Harm
		}
		segments = append(segments, fmt.Sprintf("Avg harm %.1f over %d", harm/float64(n), n))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
