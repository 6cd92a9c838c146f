package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/metrics"
	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/runtime"
	"github.com/pithecene-io/crossflow/types"
)

// recentRows is the number of entries shown per track.
const recentRows = 12

// keyMap defines key bindings.
type keyMap struct {
	Cancel key.Binding
	Quit   key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Cancel: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "cancel replay"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// DashboardModel is the live replay view: capacity gauge, running totals,
// and the most recent entries of both tracks, newest first.
type DashboardModel struct {
	feed      *Feed
	sessionID string
	estimate  *capacity.Estimate
	onCancel  func()

	status     string
	generation uint64
	state      replay.State
	cursor     int
	bound      int
	totals     metrics.Totals
	adaptive   []types.LogEntry
	fixed      []types.LogEntry
	report     *runtime.Report
	err        error

	help     help.Model
	width    int
	quitting bool
}

// NewDashboardModel creates a dashboard fed by feed. estimate may be nil
// (recordings). onCancel is invoked when the user cancels the replay.
func NewDashboardModel(feed *Feed, sessionID string, estimate *capacity.Estimate, onCancel func()) DashboardModel {
	return DashboardModel{
		feed:      feed,
		sessionID: sessionID,
		estimate:  estimate,
		onCancel:  onCancel,
		status:    "requesting simulation…",
		help:      help.New(),
	}
}

// Init implements tea.Model.
func (m DashboardModel) Init() tea.Cmd {
	return m.feed.next()
}

// Update implements tea.Model.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Cancel):
			// The scheduler notifies the feed while cancelling, so the
			// callback must run off the update loop.
			if m.state == replay.StateReplaying && m.onCancel != nil {
				cancel := m.onCancel
				return m, func() tea.Msg {
					cancel()
					return nil
				}
			}
		}
		return m, nil

	case StartedMsg:
		if msg.Generation < m.generation {
			return m, m.feed.next()
		}
		// A batch of this generation may already have arrived.
		if msg.Generation > m.generation {
			m.generation = msg.Generation
			m.state = replay.StateReplaying
			m.cursor = 0
			m.totals = metrics.Totals{}
			m.adaptive, m.fixed = nil, nil
			m.status = "replaying"
		}
		m.bound = msg.Bound
		return m, m.feed.next()

	case BatchMsg:
		if msg.Generation < m.generation {
			return m, m.feed.next()
		}
		if msg.Generation > m.generation {
			m.generation = msg.Generation
			m.adaptive, m.fixed = nil, nil
		}
		m.state = replay.StateReplaying
		m.status = "replaying"
		m.cursor = msg.To
		m.totals = msg.Totals
		m.adaptive = prependRecent(m.adaptive, msg.Adaptive)
		m.fixed = prependRecent(m.fixed, msg.Fixed)
		return m, m.feed.next()

	case FinishedMsg:
		if msg.Generation < m.generation {
			return m, m.feed.next()
		}
		m.generation = msg.Generation
		m.state = msg.State
		m.cursor = msg.Cursor
		m.bound = msg.Bound
		m.totals = msg.Totals
		m.status = msg.State.String()
		if msg.Err != nil {
			m.err = msg.Err
		}
		return m, m.feed.next()

	case ReportMsg:
		m.report = msg.Report
		return m, m.feed.next()

	case ErrorMsg:
		m.err = msg.Err
		m.status = "request failed"
		return m, m.feed.next()
	}

	return m, nil
}

// prependRecent adds entries newest first and keeps recentRows of them.
func prependRecent(recent, batch []types.LogEntry) []types.LogEntry {
	out := make([]types.LogEntry, 0, recentRows)
	for i := len(batch) - 1; i >= 0 && len(out) < recentRows; i-- {
		out = append(out, batch[i])
	}
	for _, e := range recent {
		if len(out) == recentRows {
			break
		}
		out = append(out, e)
	}
	return out
}

// View implements tea.Model.
func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("crossflow · adaptive vs fixed"))
	b.WriteString("\n")
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderTotals())
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderTrack("Adaptive", m.adaptive),
		" ",
		m.renderTrack("Fixed", m.fixed)))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("error: " + m.err.Error()))
	}
	if m.report != nil {
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render(fmt.Sprintf("outcome %s · %d ms · exit %d",
			m.report.Outcome, m.report.DurationMs, m.report.ExitCode)))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(m.help.View(keys)))
	return b.String()
}

func (m DashboardModel) renderHeader() string {
	rows := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Session:"), ValueStyle.Render(m.sessionID)),
		fmt.Sprintf("%s %s", LabelStyle.Render("State:"), StateStyle(m.state).Render(m.status)),
		fmt.Sprintf("%s %s", LabelStyle.Render("Progress:"),
			ValueStyle.Render(fmt.Sprintf("%d/%d  (generation %d)", m.cursor, m.bound, m.generation))),
	}
	if m.estimate != nil {
		rows = append(rows, fmt.Sprintf("%s %s", LabelStyle.Render("Capacity:"), Gauge(*m.estimate, 30)))
	}
	return strings.Join(rows, "\n")
}

func (m DashboardModel) renderTotals() string {
	boxes := []string{
		renderStatBox("Adaptive loss", fmt.Sprintf("%.1f", m.totals.AdaptiveLoss), highlightColor),
		renderStatBox("Fixed loss", fmt.Sprintf("%.1f", m.totals.FixedLoss), mutedColor),
		renderStatBox("Gain", fmt.Sprintf("%+.1f%%", m.totals.GainPercent), gainColor(m.totals.GainPercent)),
		renderStatBox("Points saved", fmt.Sprintf("%.1f", m.totals.PointsSaved()), successColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

func (m DashboardModel) renderTrack(title string, entries []types.LogEntry) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(fmt.Sprintf("%5s  %-12s %5s %7s", "cycle", "phase", "queue", "loss")))
	if len(entries) == 0 {
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render("(waiting)"))
	}
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(renderEntry(e))
	}
	return BoxStyle.Width(44).Render(b.String())
}

func renderEntry(e types.LogEntry) string {
	phase := e.PhaseSequence
	if len([]rune(phase)) > 12 {
		phase = string([]rune(phase)[:12])
	}
	row := fmt.Sprintf("%5d  %-12s %5d %7.1f", e.Cycle, phase, e.QueueLength, e.CycleLoss)
	switch {
	case e.Critical():
		return ErrorStyle.Render(row + " !")
	case e.Starved():
		return WarningStyle.Render(row + " ~")
	default:
		return ValueStyle.Render(row)
	}
}
