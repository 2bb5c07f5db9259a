// Package tui provides the interactive terminal UI for running sessions.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/operantlab/triseq/internal/device"
	"github.com/operantlab/triseq/internal/task"
)

// frameInterval drives the session logic loop.
const frameInterval = time.Second / 60

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	stateStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cyanColor)

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)

	finishedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	ledOnStyle  = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	ledOffStyle = lipgloss.NewStyle().Foreground(mutedColor)
	rewardStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

type keyMap struct {
	StartPause key.Binding
	Reset      key.Binding
	Mode       key.Binding
	WaitDown   key.Binding
	WaitUp     key.Binding
	WinDown    key.Binding
	WinUp      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.StartPause, k.Reset, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.StartPause, k.Reset, k.Mode},
		{k.WaitDown, k.WaitUp, k.WinDown, k.WinUp},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	StartPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/pause")),
	Reset:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
	Mode:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "toggle mode")),
	WaitDown:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "wait -0.1s")),
	WaitUp:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "wait +0.1s")),
	WinDown:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "window -0.1s")),
	WinUp:      key.NewBinding(key.WithKeys("="), key.WithHelp("=", "window +0.1s")),
	Help:       key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// App is the session runner TUI model. It owns the frame loop: every tick
// advances the session and re-renders.
type App struct {
	session *task.Session
	port    *device.KeyPort
	dataDir string
	keys    keyMap
	help    help.Model
	width   int
	height  int
}

// New creates the TUI over a prepared session and its input port.
func New(session *task.Session, port *device.KeyPort, dataDir string) *App {
	return &App{
		session: session,
		port:    port,
		dataDir: dataDir,
		keys:    keys,
		help:    help.New(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type tickMsg time.Time

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return a.tickCmd()
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Help):
			a.help.ShowAll = !a.help.ShowAll
			return a, nil
		}
		// Everything else goes straight to the device port. The timestamp is
		// taken here, not at the next frame.
		a.port.Push(msg.String(), time.Now())
		return a, nil

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width

	case tickMsg:
		a.session.Tick()
		return a, a.tickCmd()
	}
	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	snap := a.session.Snapshot()
	cfg := snap.Config

	var b strings.Builder

	// Header
	header := titleStyle.Render("TRISEQ")
	header += "  " + mutedStyle.Render(fmt.Sprintf("%s  subject %s", modeLabel(cfg), cfg.SubjectID))
	switch {
	case snap.Finished:
		header += "  " + finishedStyle.Render("SESSION COMPLETE")
	case snap.Paused:
		header += "  " + pausedStyle.Render("PAUSED")
	case !snap.Started:
		header += "  " + mutedStyle.Render("press space to start")
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	b.WriteString(a.renderIndicators(snap) + "\n\n")
	b.WriteString(a.renderState(snap) + "\n")
	b.WriteString(a.renderStats(snap) + "\n")
	b.WriteString(a.renderConfig(cfg) + "\n")

	if a.dataDir != "" {
		b.WriteString(mutedStyle.Render("  data: "+a.dataDir) + "\n")
	}

	b.WriteString("\n" + a.help.View(a.keys) + "\n")
	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(
		fmt.Sprintf(" trial %d/%d | keys %s %s %s", snap.TrialIndex, cfg.MaxTrials,
			cfg.Controls[0], cfg.Controls[1], cfg.Controls[2])))

	return b.String()
}

func (a *App) renderIndicators(snap task.Snapshot) string {
	ind := a.port.Indicators()
	var parts []string
	for i := 0; i < 3; i++ {
		label := fmt.Sprintf("●%d", i+1)
		if ind[i] {
			parts = append(parts, ledOnStyle.Render(label))
		} else {
			parts = append(parts, ledOffStyle.Render(fmt.Sprintf("○%d", i+1)))
		}
	}
	reward := ledOffStyle.Render("○R")
	if a.port.ActuatorOn() {
		reward = rewardStyle.Render("●R")
	}
	parts = append(parts, reward)
	return panelStyle.Render(strings.Join(parts, "  "))
}

func (a *App) renderState(snap task.Snapshot) string {
	line := "  " + stateStyle.Render(string(snap.State))
	if snap.Started && !snap.Paused && !snap.Finished {
		line += mutedStyle.Render(fmt.Sprintf("  %.1fs remaining", snap.Remaining.Seconds()))
	}
	return line
}

func (a *App) renderStats(snap task.Snapshot) string {
	var b strings.Builder
	total := 0
	for _, n := range snap.Stats {
		total += n
	}
	b.WriteString("\n  Results\n")
	for i := 0; i < task.NumOutcomes; i++ {
		o := task.Outcome(i)
		b.WriteString(fmt.Sprintf("    %-16s %d\n", o.String(), snap.Stats[i]))
	}
	if total > 0 {
		acc := float64(snap.Stats[task.OutcomeCorrect]) / float64(total)
		b.WriteString(fmt.Sprintf("    %-16s %.0f%%\n", "Accuracy", acc*100))
	}
	if len(snap.Recent) > 0 {
		b.WriteString("    Recent          " + renderRecent(snap.Recent) + "\n")
	}
	if snap.PrematureCount > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("    ITI presses     %d", snap.PrematureCount)) + "\n")
	}
	if n := len(snap.Adjustments); n > 0 {
		last := snap.Adjustments[n-1]
		b.WriteString(mutedStyle.Render(fmt.Sprintf(
			"    Adaptive        %d changes, last at trial %d (acc %.0f%%)",
			n, last.TrialIndex, last.Accuracy*100)) + "\n")
	}
	return b.String()
}

func (a *App) renderConfig(cfg task.Config) string {
	return mutedStyle.Render(fmt.Sprintf(
		"  waits %.1f/%.1f/%.1fs  window %.1fs  reward %.1fs",
		cfg.Wait[0].Seconds(), cfg.Wait[1].Seconds(), cfg.Wait[2].Seconds(),
		cfg.ReleaseWindow.Seconds(), cfg.RewardDuration.Seconds()))
}

func renderRecent(recent []task.Outcome) string {
	var parts []string
	for _, o := range recent {
		switch o {
		case task.OutcomeCorrect:
			parts = append(parts, lipgloss.NewStyle().Foreground(successColor).Render("✓"))
		case task.OutcomeNoPress:
			parts = append(parts, mutedStyle.Render("·"))
		case task.OutcomeWrongButton:
			parts = append(parts, lipgloss.NewStyle().Foreground(errorColor).Render("W"))
		case task.OutcomeHoldTooLong:
			parts = append(parts, lipgloss.NewStyle().Foreground(warningColor).Render("H"))
		case task.OutcomePrematurePress:
			parts = append(parts, lipgloss.NewStyle().Foreground(errorColor).Render("P"))
		}
	}
	return strings.Join(parts, " ")
}

func modeLabel(cfg task.Config) string {
	if cfg.Mode == task.ModeShaping1 {
		return fmt.Sprintf("shaping (step %d)", cfg.ShapingStep)
	}
	return "3-step sequence"
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
