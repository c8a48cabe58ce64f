// Package app implements the Bubble Tea application shell around the
// balance dashboard.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/orbwatch/internal/config"
	"github.com/j-veylop/orbwatch/internal/monitor"
	"github.com/j-veylop/orbwatch/internal/ui/dashboard"
	"github.com/j-veylop/orbwatch/internal/ui/styles"
)

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Refresh key.Binding
	Window  key.Binding
	Help    key.Binding
	Quit    key.Binding
	Escape  key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Window:  key.NewBinding(key.WithKeys("w", "tab"), key.WithHelp("w", "cycle window")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Escape:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close help")),
	}
}

// ShortHelp returns key bindings for the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Window, k.Help, k.Quit}
}

// Model is the main application model.
type Model struct {
	monitor   *monitor.Monitor
	cfg       *config.Config
	dashboard dashboard.Model
	keymap    KeyMap
	spinner   spinner.Model

	events chan monitor.Event

	width  int
	height int

	showHelp   bool
	ready      bool
	refreshing bool
	status     string
}

// NewModel initializes a new application model.
func NewModel(cfg *config.Config, mon *monitor.Monitor) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return &Model{
		monitor:   mon,
		cfg:       cfg,
		dashboard: dashboard.New(cfg.LowThreshold, cfg.CriticalThreshold),
		keymap:    DefaultKeyMap(),
		spinner:   s,
		events:    mon.Subscribe(),
		status:    "Waiting for first reading...",
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEventCmd(m.events),
		m.loadWindow(),
	)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.dashboard.SetSize(m.width, m.height-3)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if !m.dashboard.HasData() || m.refreshing {
			return m, cmd
		}
		return m, nil

	case MonitorEventMsg:
		return m, m.handleMonitorEvent(msg.Event)

	case WindowDataMsg:
		m.handleWindowData(msg)
		return m, nil

	case RefreshStartedMsg:
		return m, m.spinner.Tick
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keymap.Escape):
		m.showHelp = false

	case key.Matches(msg, m.keymap.Refresh):
		m.refreshing = true
		m.status = "Refreshing..."
		return refreshCmd(m.monitor)

	case key.Matches(msg, m.keymap.Window):
		m.dashboard.SetWindow(m.dashboard.Window().Next())
		return m.loadWindow()
	}
	return nil
}

func (m *Model) handleMonitorEvent(event monitor.Event) tea.Cmd {
	cmds := []tea.Cmd{waitForEventCmd(m.events)}

	switch e := event.(type) {
	case monitor.BalanceUpdatedEvent:
		m.refreshing = false
		m.status = fmt.Sprintf("Updated %s via %s",
			time.Now().Local().Format("15:04:05"), e.Snapshot.Source)
		// Reload through the current window so a non-default window
		// keeps its own history depth.
		cmds = append(cmds, m.loadWindow())

	case monitor.CycleErrorEvent:
		m.refreshing = false
		m.status = "Refresh failed"
		m.dashboard.SetError(e.Err)

	case monitor.PrunedEvent:
		m.status = fmt.Sprintf("Pruned %d old records", e.Removed)
	}

	return tea.Batch(cmds...)
}

func (m *Model) handleWindowData(msg WindowDataMsg) {
	if msg.Err != nil {
		m.dashboard.SetError(msg.Err)
		return
	}
	m.dashboard.SetWindow(msg.Window)
	m.dashboard.SetData(msg.Snapshot, msg.Analytics, msg.Alerts)
}

func (m *Model) loadWindow() tea.Cmd {
	return loadWindowCmd(m.monitor, m.dashboard.Window(),
		m.cfg.LowThreshold, m.cfg.CriticalThreshold)
}

// View renders the application UI.
func (m *Model) View() string {
	if !m.ready {
		return fmt.Sprintf("%s Loading...", m.spinner.View())
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("orbwatch"))
	b.WriteString("\n")

	if !m.dashboard.HasData() {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(),
			styles.HelpStyle.Render("Fetching balance...")))
	}

	b.WriteString(m.dashboard.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

func (m *Model) renderStatusBar() string {
	var hints []string
	for _, binding := range m.keymap.ShortHelp() {
		hints = append(hints, fmt.Sprintf("%s %s",
			styles.HelpKeyStyle.Render(binding.Help().Key),
			binding.Help().Desc))
	}

	left := strings.Join(hints, "  ")
	line := left + "  " + styles.HelpStyle.Render(m.status)

	if m.width > 0 {
		line = ansi.Truncate(line, m.width, "…")
	}
	return styles.StatusBarStyle.Render(line)
}

func (m *Model) renderHelp() string {
	var lines []string

	lines = append(lines, styles.TitleStyle.Render("Keyboard Shortcuts"))
	lines = append(lines, "")
	lines = append(lines, "  r          Refresh balance now")
	lines = append(lines, "  w/Tab      Cycle analytics window (24h, 7d, 30d)")
	lines = append(lines, "  ?          Toggle help")
	lines = append(lines, "  q/Ctrl+C   Quit")
	lines = append(lines, "")
	lines = append(lines, styles.HelpStyle.Render("Press ? or Esc to close"))

	panel := styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
	if m.width > 0 && m.height > 0 {
		return styles.CenterBoth(panel, m.width, m.height)
	}
	return panel
}
