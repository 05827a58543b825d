// Package ui renders the terminal dashboard shown by `synapview serve
// --tui`: live simulation energy, session counts, and a few keyboard
// controls over the shared layout.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/synapview/synapview/pkg/live"
	"github.com/synapview/synapview/pkg/viewer"
)

// Style definitions
var (
	primaryColor = lipgloss.Color("#3b82f6")
	successColor = lipgloss.Color("#10b981")
	warningColor = lipgloss.Color("#f59e0b")
	mutedColor   = lipgloss.Color("#94a3b8")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	settledStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// KeyMap defines the dashboard keyboard shortcuts
type KeyMap struct {
	TogglePhysics key.Binding
	Reheat        key.Binding
	UnpinAll      key.Binding
	Quit          key.Binding
}

var DefaultKeyMap = KeyMap{
	TogglePhysics: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "toggle physics"),
	),
	Reheat: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reheat layout"),
	),
	UnpinAll: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "unpin all"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit dashboard"),
	),
}

type refreshMsg time.Time

// Model is the dashboard state. It polls the viewer and server on a
// fixed interval rather than subscribing to ticks; 60 updates a second
// would just thrash the terminal.
type Model struct {
	viewer *viewer.Viewer
	server *live.Server

	spinner  spinner.Model
	width    int
	height   int
	quitting bool
}

// NewModel creates the dashboard model.
func NewModel(v *viewer.Viewer, s *live.Server) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)
	return Model{viewer: v, server: s, spinner: sp}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshTick())
}

func refreshTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, DefaultKeyMap.TogglePhysics):
			m.viewer.SetEnabled(!m.viewer.Engine().Enabled())
		case key.Matches(msg, DefaultKeyMap.Reheat):
			m.viewer.Engine().Reheat()
		case key.Matches(msg, DefaultKeyMap.UnpinAll):
			m.viewer.UnpinAll()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		return m, refreshTick()
	}
	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	engine := m.viewer.Engine()
	snap := m.viewer.Snapshot()

	var status string
	switch {
	case !engine.Enabled():
		status = activeStyle.Render("paused")
	case engine.Settled():
		status = settledStyle.Render("settled")
	default:
		status = m.spinner.View() + activeStyle.Render(fmt.Sprintf(" settling (α %.3f)", engine.Alpha()))
	}

	pinned := 0
	for _, n := range snap.Nodes {
		if n.Pinned {
			pinned++
		}
	}

	var rows []string
	rows = append(rows, labelStyle.Render("Nodes")+fmt.Sprintf("%d", len(snap.Nodes)))
	rows = append(rows, labelStyle.Render("Edges")+fmt.Sprintf("%d", len(snap.Edges)))
	rows = append(rows, labelStyle.Render("Pinned")+fmt.Sprintf("%d", pinned))
	rows = append(rows, labelStyle.Render("Overlays")+fmt.Sprintf("%d", m.viewer.Overlays().Len()))
	rows = append(rows, labelStyle.Render("Sessions")+fmt.Sprintf("%d", m.server.SessionCount()))
	rows = append(rows, labelStyle.Render("Simulation")+status)

	content := titleStyle.Render("Synapview") + "\n" +
		boxStyle.Render(strings.Join(rows, "\n"))

	footer := footerStyle.Render("p toggle physics · r reheat · u unpin all · q quit")
	return content + "\n" + footer
}

// RunDashboard runs the dashboard until the user quits it.
func RunDashboard(v *viewer.Viewer, s *live.Server) error {
	p := tea.NewProgram(NewModel(v, s))
	_, err := p.Run()
	return err
}
