package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/loadsim/pkg/client"
)

const (
	pollRate       = time.Second
	requestTimeout = 2 * time.Second
	viewportHeight = 16
	maxTasks       = 50
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	kindStyle = lipgloss.NewStyle().Width(8).Bold(true)

	statusStyles = map[string]lipgloss.Style{
		"good":     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"warning":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"critical": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// settings are the load parameters applied by the quick-launch keys.
type settings struct {
	percentage float64
	duration   string
	logCount   int
	services   int
}

type tickMsg time.Time

type dataMsg struct {
	list *client.TaskList
	err  error
}

type actionMsg struct {
	text string
	err  error
}

type model struct {
	client   *client.Client
	settings settings

	spinner  spinner.Model
	viewport viewport.Model
	tasks    []client.Task
	running  int
	last     string
	err      error
	ready    bool
}

func initialModel(c *client.Client, s settings) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		client:   c,
		settings: s,
		spinner:  sp,
		viewport: newViewport(100),
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetchTasks(),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "m":
			return m, m.simulate("memory")
		case "c":
			return m, m.simulate("cpu")
		case "d":
			return m, m.simulate("disk")
		case "l":
			return m, m.generateLogs()
		case "t":
			return m, m.generateTrace()
		case "x":
			return m, m.cancelNewest()
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, m.fetchTasks(), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.tasks = msg.list.Tasks
			m.running = msg.list.Running
			m.updateViewportContent()
		}
		m.ready = true

	case actionMsg:
		if msg.err != nil {
			m.last = errorStyle.Render(msg.err.Error())
		} else {
			m.last = okStyle.Render(msg.text)
		}
		cmds = append(cmds, m.fetchTasks())

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	tasks := m.tasks
	if len(tasks) > maxTasks {
		tasks = tasks[:maxTasks]
	}
	for _, t := range tasks {
		style, ok := statusStyles[t.Status]
		if !ok {
			style = subtleStyle
		}
		state := t.State
		if t.Error != "" {
			state += ": " + t.Error
		}
		fmt.Fprintf(&sb, "%s %s %s %s %s\n",
			timeStyle.Render(t.StartedAt.Local().Format(time.TimeOnly)),
			kindStyle.Render(t.Kind),
			style.Render(fmt.Sprintf("%5.1f%% %-8s", t.Percentage, t.Status)),
			subtleStyle.Render(fmt.Sprintf("%4ds", t.DurationSeconds)),
			state,
		)
	}
	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	s := m.settings
	var settingsPane strings.Builder
	settingsPane.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Quick launch") + "\n\n")
	fmt.Fprintf(&settingsPane, "m/c/d  memory, cpu, disk at %.1f%% for %s\n", s.percentage, s.duration)
	fmt.Fprintf(&settingsPane, "l      %d INFO log lines\n", s.logCount)
	fmt.Fprintf(&settingsPane, "t      trace across %d services\n", s.services)
	settingsPane.WriteString("x      cancel the newest running task")
	if m.last != "" {
		settingsPane.WriteString("\n\n" + m.last)
	}
	topPane := paneStyle.Render(settingsPane.String())

	header := headerStyle.Render(fmt.Sprintf("%s Tasks", m.spinner.View()))

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Running • %d Tasks", m.running, len(m.tasks)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, m.viewport.View(), footer)
}

// Commands

func (m model) fetchTasks() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := c.ListTasks(ctx)
		return dataMsg{list: list, err: err}
	}
}

func (m model) simulate(kind string) tea.Cmd {
	c, s := m.client, m.settings
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := c.Simulate(ctx, kind, client.SimulationRequest{Percentage: s.percentage, Duration: s.duration})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: resp.Message}
	}
}

func (m model) generateLogs() tea.Cmd {
	c, s := m.client, m.settings
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := c.GenerateLogs(ctx, client.LogRequest{Level: "INFO", Message: "Generated from loadsim-tui", Count: s.logCount})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: resp.Message}
	}
}

func (m model) generateTrace() tea.Cmd {
	c, s := m.client, m.settings
	return func() tea.Msg {
		// a trace blocks for a share of its span durations
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.services)*2*time.Second+requestTimeout)
		defer cancel()
		resp, err := c.GenerateTrace(ctx, client.TraceRequest{Services: s.services})
		if err != nil {
			return actionMsg{err: err}
		}
		failed := 0
		for _, sp := range resp.Spans {
			if sp.Status == "error" {
				failed++
			}
		}
		return actionMsg{text: fmt.Sprintf("%s (%d spans, %d errors)", resp.Message, len(resp.Spans), failed)}
	}
}

func (m model) cancelNewest() tea.Cmd {
	var id string
	for _, t := range m.tasks {
		if t.Running() {
			id = t.ID
			break
		}
	}
	if id == "" {
		return func() tea.Msg { return actionMsg{text: "No running tasks"} }
	}
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout+3*time.Second)
		defer cancel()
		t, err := c.CancelTask(ctx, id)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("Task %s is %s", t.ID, t.State)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	apiURL := flag.String("api", client.DefaultEndpoint, "Base URL of loadsimd")
	var s settings
	flag.Float64Var(&s.percentage, "percentage", 50, "Load percentage for quick launches")
	flag.StringVar(&s.duration, "duration", "00:30", "Duration (MM:SS) for quick launches")
	flag.IntVar(&s.logCount, "log-count", 5, "Log lines per l press")
	flag.IntVar(&s.services, "services", 3, "Services per generated trace")
	flag.Parse()

	p := tea.NewProgram(initialModel(client.NewClient(*apiURL), s), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
