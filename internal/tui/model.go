// Package tui provides the Bubble Tea tap test interface.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuitap/internal/model"
	"github.com/verte-zerg/tuitap/internal/session"
	"github.com/verte-zerg/tuitap/internal/share"
)

// frameInterval approximates one display refresh; remaining time is
// recomputed from the anchor timestamp on every tick, so the interval
// affects smoothness only, never accuracy.
const frameInterval = time.Second / 60

type tickMsg struct {
	id int
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Model implements the Bubble Tea tap test UI.
type Model struct {
	cfg   model.Config
	sess  *session.Session
	clock session.Clock
	keys  keyMap
	help  help.Model

	width  int
	height int

	// pollID tags the scheduled tick chain; a reset or expiry bumps it so
	// an already-scheduled tick is dropped when it fires.
	pollID int
	notice string
}

// NewModel constructs a tap test TUI model.
func NewModel(cfg model.Config, sess *session.Session, clock session.Clock) *Model {
	return &Model{
		cfg:   cfg,
		sess:  sess,
		clock: clock,
		keys:  newKeyMap(cfg.TapKeys),
		help:  help.New(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tickMsg:
		return m, m.handleTick(msg)
	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			return m, m.handleTap()
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tap):
			return m, m.handleTap()
		case key.Matches(msg, m.keys.Preset):
			m.selectPreset(msg.String())
			return m, nil
		case key.Matches(msg, m.keys.Reset):
			m.reset(m.sess.Duration())
			return m, nil
		case key.Matches(msg, m.keys.Share):
			m.shareResult()
			return m, nil
		default:
			return m, nil
		}
	default:
		return m, nil
	}
}

func (m *Model) tickCmd() tea.Cmd {
	id := m.pollID
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return tickMsg{id: id}
	})
}

func (m *Model) handleTap() tea.Cmd {
	wasIdle := m.sess.Phase() == session.PhaseIdle
	m.sess.RegisterClick()
	if wasIdle && m.sess.Phase() == session.PhaseRunning {
		m.notice = ""
		m.pollID++
		return m.tickCmd()
	}
	return nil
}

func (m *Model) handleTick(msg tickMsg) tea.Cmd {
	if msg.id != m.pollID || m.sess.Phase() != session.PhaseRunning {
		return nil
	}
	finished, err := m.sess.Tick(context.Background(), m.clock.Now())
	if err != nil {
		logErrf("failed to save best score: %v\n", err)
		m.notice = "best score not saved (storage unavailable)"
	}
	if finished {
		m.pollID++
		return nil
	}
	return m.tickCmd()
}

func (m *Model) selectPreset(pressed string) {
	if len(pressed) != 1 {
		return
	}
	idx := int(pressed[0] - '1')
	if idx < 0 || idx >= len(model.PresetDurations) {
		return
	}
	m.reset(time.Duration(model.PresetDurations[idx] * float64(time.Second)))
}

func (m *Model) reset(duration time.Duration) {
	m.pollID++
	m.sess.Reset(duration)
	m.notice = ""
}

func (m *Model) shareResult() {
	snap := m.sess.Snapshot(m.clock.Now())
	if !snap.HasFinal {
		m.notice = "finish a run before sharing"
		return
	}
	summary := share.Summary{Clicks: snap.Clicks, Duration: snap.Duration, Rate: snap.FinalRate}
	if err := share.Copy(summary); err != nil {
		logErrf("%v\n", err)
		m.notice = "could not copy result to clipboard"
		return
	}
	m.notice = "result copied to clipboard"
}

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.sess.Snapshot(m.clock.Now())
	content := m.renderContent(snap)
	noticeLine := ""
	if m.notice != "" {
		noticeLine = noticeStyle.Render(m.notice)
	}
	helpLine := footerStyle.Render(m.help.View(m.keys))
	if m.width == 0 || m.height == 0 {
		parts := []string{content}
		if noticeLine != "" {
			parts = append(parts, noticeLine)
		}
		parts = append(parts, helpLine)
		return strings.Join(parts, "\n")
	}
	bodyHeight := m.height - 2
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	noticeRow := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, noticeLine)
	helpRow := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, helpLine)
	return body + "\n" + noticeRow + "\n" + helpRow
}

func (m *Model) renderContent(snap session.Snapshot) string {
	lines := []string{titleStyle.Render("tuitap"), "", m.renderStats(snap), ""}
	switch snap.Phase {
	case session.PhaseIdle:
		lines = append(lines,
			labelStyle.Render("Tap space or click as fast as you can. The first tap starts the clock."),
			labelStyle.Render(presetLegend()))
	case session.PhaseRunning:
		lines = append(lines, accentStyle.Render("Go!"))
	case session.PhaseFinished:
		lines = append(lines, m.renderResult(snap))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderStats(snap session.Snapshot) string {
	rate := snap.LiveRate
	if snap.Phase == session.PhaseFinished {
		rate = snap.FinalRate
	}
	best := "best -"
	if snap.HasBest {
		best = fmt.Sprintf("best %.2f cps", snap.BestRate)
	}
	cells := []string{
		fmt.Sprintf("time %.1fs", snap.Remaining.Seconds()),
		fmt.Sprintf("clicks %d", snap.Clicks),
		fmt.Sprintf("rate %.2f cps", rate),
		best,
	}
	const cellWidth = 16
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = padCell(cell, cellWidth)
	}
	return valueStyle.Render(strings.TrimRight(strings.Join(padded, ""), " "))
}

func (m *Model) renderResult(snap session.Snapshot) string {
	result := fmt.Sprintf("Time! %d clicks in %s = %.2f CPS",
		snap.Clicks, share.FormatSeconds(snap.Duration), snap.FinalRate)
	if snap.HasBest && snap.FinalRate == snap.BestRate {
		result += "  " + accentStyle.Render("new best!")
	}
	return valueStyle.Render(result)
}

func presetLegend() string {
	parts := make([]string, 0, len(model.PresetDurations))
	for i, d := range model.PresetDurations {
		parts = append(parts, fmt.Sprintf("%d:%gs", i+1, d))
	}
	return "Durations  " + strings.Join(parts, "  ")
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
