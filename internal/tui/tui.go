// Package tui implements the Bubble Tea stepper for deep-dive review:
// one hunk at a time, confirm or pause.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/revq/internal/engine"
	"github.com/sprite-ai/revq/internal/model"
	"github.com/sprite-ai/revq/internal/render"
)

// Model is the top-level Bubble Tea model for the deep-dive stepper.
type Model struct {
	session *engine.Session
	dive    *engine.DeepDive

	width  int
	height int

	scrollOffset int
	viewHeight   int

	// Rendered lines for the current hunk.
	lines []string

	showHelp bool
	err      error
}

// New builds the stepper over an in-flight deep dive.
func New(s *engine.Session, d *engine.DeepDive) Model {
	m := Model{session: s, dive: d}
	m.updateLines()
	return m
}

func (m *Model) updateLines() {
	m.scrollOffset = 0
	h := m.dive.Current()
	if h == nil {
		m.lines = nil
		return
	}
	m.lines = renderHunk(h)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = m.height - 5 // header + status bar + borders
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.err = m.dive.Cancel(context.Background())
			return m, tea.Quit

		case key.Matches(msg, keys.Cancel):
			m.err = m.dive.Cancel(context.Background())
			return m, tea.Quit

		case key.Matches(msg, keys.Confirm):
			if m.dive.Completed() {
				return m, tea.Quit
			}
			if err := m.dive.Confirm(context.Background()); err != nil {
				m.err = err
				return m, tea.Quit
			}
			if m.dive.Completed() {
				return m, tea.Quit
			}
			m.updateLines()

		case key.Matches(msg, keys.Down):
			if m.scrollOffset < len(m.lines)-1 {
				m.scrollOffset++
			}

		case key.Matches(msg, keys.Up):
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}
	}

	return m, nil
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error { return m.err }

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.dive.Completed() {
		return doneStyle.Render("deep dive complete") + "\n"
	}

	header := m.renderHeader()
	body := m.renderHunkView()
	status := m.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m Model) renderHeader() string {
	h := m.dive.Current()
	progress := progressStyle.Render(fmt.Sprintf("hunk %d/%d", m.dive.Index()+1, m.dive.Len()))
	return fileHeaderStyle.Render(h.File) + "  " + progress
}

func (m Model) renderHunkView() string {
	height := m.viewHeight
	if height < 1 {
		height = 1
	}

	start := m.scrollOffset
	if start > len(m.lines) {
		start = len(m.lines)
	}
	end := start + height
	if end > len(m.lines) {
		end = len(m.lines)
	}

	view := strings.Join(m.lines[start:end], "\n")
	return hunkViewStyle.Width(m.width - 2).Render(view)
}

func (m Model) renderStatusBar() string {
	remaining := m.session.Queue().Remaining()
	left := statusBarStyle.Render(fmt.Sprintf("%d lines remaining", remaining))
	right := statusBarStyle.Render(
		statusKeyStyle.Render("enter") + " confirm  " +
			statusKeyStyle.Render("esc") + " pause  " +
			statusKeyStyle.Render("?") + " help")
	return left + right
}

func (m Model) renderHelp() string {
	rows := []struct{ k, desc string }{
		{"enter/y", "mark this hunk deep-reviewed and advance"},
		{"esc/c", "pause the dive; resume later at this hunk"},
		{"↑/k ↓/j", "scroll within the hunk"},
		{"q", "quit (same as pause)"},
	}
	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render("deep dive keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s  %s\n", statusKeyStyle.Render(fmt.Sprintf("%-8s", r.k)), helpStyle.Render(r.desc))
	}
	return b.String()
}

// renderHunk turns a hunk into gutter-annotated, syntax-colored lines.
func renderHunk(h *model.Hunk) []string {
	highlighted := render.HighlightHunk(h)
	out := make([]string, 0, len(h.Lines))
	for i, l := range h.Lines {
		var gutter string
		var lineStyle lipgloss.Style
		switch l.Kind {
		case model.KindAdded:
			gutter, lineStyle = "+", addedLineStyle
		case model.KindRemoved:
			gutter, lineStyle = "-", removedLineStyle
		default:
			gutter, lineStyle = " ", contextLineStyle
		}

		num := ""
		if l.NewLine > 0 {
			num = fmt.Sprint(l.NewLine)
		}

		var content strings.Builder
		for _, tok := range highlighted[i].Tokens {
			if tok.Color != "" {
				content.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
			} else {
				content.WriteString(lineStyle.Render(tok.Text))
			}
		}

		out = append(out, lineNumberStyle.Render(num)+" "+lineStyle.Render(gutter)+" "+content.String())
	}
	return out
}

// Run drives the stepper to completion or pause.
func Run(s *engine.Session, d *engine.DeepDive) error {
	p := tea.NewProgram(New(s, d), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
