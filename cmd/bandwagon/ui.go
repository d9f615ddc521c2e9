package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
	"github.com/bandwagon-dev/bandwagon/internal/recommend"
	"github.com/bandwagon-dev/bandwagon/internal/search"
)

// Color palette
var (
	bandcampTeal = lipgloss.Color("#1DA0C3")
	dimGray      = lipgloss.Color("#6B7280")
	lightGray    = lipgloss.Color("#9CA3AF")
	white        = lipgloss.Color("#F9FAFB")
	red          = lipgloss.Color("#EF4444")
	yellow       = lipgloss.Color("#F59E0B")
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(white).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(bandcampTeal)
	dimStyle    = lipgloss.NewStyle().Foreground(dimGray)
	metaStyle   = lipgloss.NewStyle().Foreground(lightGray)
	errorStyle  = lipgloss.NewStyle().Foreground(red)
	noteStyle   = lipgloss.NewStyle().Foreground(yellow)
	rankStyle   = lipgloss.NewStyle().Foreground(bandcampTeal).Bold(true).Width(4).Align(lipgloss.Right)
)

// progressMsg carries one progress update from the engine goroutine.
type progressMsg struct {
	status  string
	current int
	total   int
	eta     int
}

// doneMsg carries the final result set.
type doneMsg struct {
	items []domain.Item
	note  string
}

type errMsg struct{ err error }

// uiModel drives the interactive run: a spinner and progress bar while
// the engine works, then a filterable result list.
type uiModel struct {
	mode string

	spinner  spinner.Model
	progress progress.Model
	filter   textinput.Model
	index    *search.Filter

	status  string
	current int
	total   int
	eta     int

	items     []domain.Item
	visible   []search.Result
	note      string
	err       error
	done      bool
	filtering bool
	width     int
}

func newUIModel(mode, initialFilter string) uiModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter results"
	ti.CharLimit = 64
	ti.SetValue(initialFilter)

	return uiModel{
		mode:     mode,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		filter:   ti,
		index:    search.NewFilter(nil),
		status:   "Starting",
		width:    80,
	}
}

func (m uiModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(msg.Width-8, 50)
		return m, nil

	case progressMsg:
		m.status = msg.status
		m.current = msg.current
		m.total = msg.total
		m.eta = msg.eta
		if msg.total > 0 {
			return m, m.progress.SetPercent(float64(msg.current) / float64(msg.total))
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.items = msg.items
		m.note = msg.note
		m.index.Index(msg.items)
		m.visible = m.index.Filter(m.filter.Value())
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m uiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.Type {
		case tea.KeyEsc:
			m.filtering = false
			m.filter.SetValue("")
			m.filter.Blur()
			m.visible = m.index.Filter("")
			return m, nil
		case tea.KeyEnter:
			m.filtering = false
			m.filter.Blur()
			return m, nil
		case tea.KeyCtrlC:
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.visible = m.index.Filter(m.filter.Value())
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "/":
		if m.done {
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		}
	}
	return m, nil
}

func (m uiModel) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if !m.done {
		return m.progressView()
	}
	return m.resultsView()
}

func (m uiModel) progressView() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %s %s\n\n", m.spinner.View(), m.status))
	if m.total > 0 {
		sb.WriteString("  " + m.progress.View() + "\n")
		line := fmt.Sprintf("%d/%d supporters", m.current, m.total)
		if m.eta > 0 {
			line += fmt.Sprintf(", about %ds left", m.eta)
		}
		sb.WriteString("  " + dimStyle.Render(line) + "\n")
	}
	return sb.String()
}

func (m uiModel) resultsView() string {
	var sb strings.Builder
	sb.WriteString("\n")

	header := fmt.Sprintf("%d results", len(m.items))
	if m.filtering || m.filter.Value() != "" {
		header = fmt.Sprintf("%d of %d results", len(m.visible), len(m.items))
	}
	sb.WriteString("  " + titleStyle.Render(header) + "\n")
	if m.note != "" {
		sb.WriteString("  " + noteStyle.Render(m.note) + "\n")
	}
	sb.WriteString("\n")

	if len(m.visible) == 0 {
		sb.WriteString("  " + dimStyle.Render("Nothing matches.") + "\n")
	}
	for i, res := range m.visible {
		item := res.Item
		sb.WriteString(fmt.Sprintf("%s %s\n",
			rankStyle.Render(fmt.Sprintf("%d.", i+1)),
			titleStyle.Render(item.Label())))
		sb.WriteString("     " + metaStyle.Render(describeMetric(m.mode, item)) + "\n")
		if item.URL != "" {
			sb.WriteString("     " + dimStyle.Render(item.URL) + "\n")
		}
	}

	sb.WriteString("\n")
	if m.filtering {
		sb.WriteString("  " + m.filter.View() + "\n")
	} else {
		sb.WriteString("  " + dimStyle.Render("/ filter   q quit") + "\n")
	}
	return sb.String()
}

// runUI runs the engine in a goroutine feeding the Bubble Tea program.
func runUI(ctx context.Context, engine *recommend.Engine, opts options) error {
	p := tea.NewProgram(newUIModel(opts.mode, opts.filter))

	go func() {
		fn := func(status string, current, total, eta int) {
			p.Send(progressMsg{status: status, current: current, total: total, eta: eta})
		}
		items, note, err := runMode(ctx, engine, opts, fn)
		if err != nil {
			p.Send(errMsg{err})
			return
		}
		p.Send(doneMsg{items: items, note: note})
	}()

	model, err := p.Run()
	if err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	if m, ok := model.(uiModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
