// Package application holds the terminal views for interactive imports: a
// menu of registered containers and a live progress screen.
package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

type screen int

const (
	screenMenu screen = iota
	screenImport
	screenResult
)

// maxBarWidth keeps the bar readable on wide terminals.
const maxBarWidth = 60

// maxListedWarnings is how many warnings the result screen shows.
const maxListedWarnings = 5

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).MarginBottom(1)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	cancelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// Options configures a Model.
type Options struct {
	// DocumentID overrides each container's default document.
	DocumentID string
	// Write, when set, runs after every completed import.
	Write WriteFunc
}

// Model is the bubbletea model behind both views. The menu view starts on
// the container menu; the import view starts a run right away and quits
// when it ends.
type Model struct {
	ctx        context.Context
	session    Session
	write      WriteFunc
	documentID string

	root   *Menu
	menu   *Menu
	cursor int

	screen     screen
	container  string
	runID      string
	updates    <-chan core.RunProgress
	last       core.RunProgress
	bar        progress.Model
	cancelling bool

	result *core.RunResult
	output string
	err    error

	initial tea.Cmd
}

func newModel(ctx context.Context, session Session, opts Options) *Model {
	return &Model{
		ctx:        ctx,
		session:    session,
		write:      opts.Write,
		documentID: opts.DocumentID,
		bar:        progress.New(progress.WithDefaultGradient()),
	}
}

// NewMenuModel opens on a menu built from defs.
func NewMenuModel(ctx context.Context, session Session, defs []core.ContainerDefinition, opts Options) *Model {
	m := newModel(ctx, session, opts)
	m.root = buildMenuTree(m, defs)
	m.menu = m.root
	return m
}

// NewImportModel starts req as soon as the program runs.
func NewImportModel(ctx context.Context, session Session, req core.ImportRequest, opts Options) *Model {
	m := newModel(ctx, session, opts)
	m.screen = screenImport
	m.container = req.Container
	m.initial = m.startImport(req)
	return m
}

// Result returns the last finished run, if any.
func (m *Model) Result() *core.RunResult { return m.result }

// Output returns where the last completed import was written.
func (m *Model) Output() string { return m.output }

// Err returns the error that ended the last import attempt.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return m.initial
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startedMsg:
		m.screen = screenImport
		m.container = msg.container
		m.runID = msg.runID
		m.updates = msg.updates
		m.last = core.RunProgress{}
		m.result, m.output, m.err = nil, "", nil
		m.cancelling = false
		return m, waitForProgress(msg.updates)

	case progressMsg:
		m.last = core.RunProgress(msg)
		return m, waitForProgress(m.updates)

	case streamClosedMsg:
		return m, m.fetchResult(m.runID, m.container)

	case resultMsg:
		m.result, m.output, m.err = msg.result, msg.output, msg.err
		return m.finish()

	case ErrMsg:
		m.err = msg.Err
		return m.finish()
	}

	return m, nil
}

// finish shows the result, or quits when there is no menu to return to.
func (m *Model) finish() (tea.Model, tea.Cmd) {
	m.screen = screenResult
	m.updates = nil
	if m.root == nil {
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch m.screen {
	case screenImport:
		if (key == "ctrl+c" || key == "esc" || key == "q") && m.runID != "" && !m.cancelling {
			m.cancelling = true
			return m, m.cancelImport(m.runID)
		}
		return m, nil

	case screenResult:
		switch key {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter", "esc", "backspace":
			if m.root == nil {
				return m, tea.Quit
			}
			m.screen = screenMenu
		}
		return m, nil
	}

	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.menu.Items)-1 {
			m.cursor++
		}

	case "esc", "backspace":
		if m.menu.Parent != nil {
			m.menu = m.menu.Parent
			m.cursor = 0
		}

	case "enter":
		item := m.menu.Items[m.cursor]
		if item.Submenu != nil {
			m.menu = item.Submenu
			m.cursor = 0
			return m, nil
		}
		if item.Action != nil {
			return m, item.Action()
		}
	}

	return m, nil
}

func (m *Model) View() string {
	switch m.screen {
	case screenImport:
		return m.importView()
	case screenResult:
		return m.resultView()
	default:
		return m.menuView()
	}
}

func (m *Model) menuView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.menu.Title))
	b.WriteString("\n")

	for i, item := range m.menu.Items {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + item.Label))
		} else {
			b.WriteString("  " + item.Label)
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc back • q quit"))
	return b.String()
}

func (m *Model) importView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Importing " + m.container))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.last.Progress))
	b.WriteString("\n\n")

	if m.last.PageCount > 0 && m.last.Page != "" {
		fmt.Fprintf(&b, "Page %d/%d: %s\n", m.last.PageIndex+1, m.last.PageCount, m.last.Page)
	}
	status := m.last.Status
	if m.cancelling {
		status = "Cancelling after the current page..."
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	b.WriteString(helpStyle.Render("esc cancel"))
	return b.String()
}

func (m *Model) resultView() string {
	var b strings.Builder

	switch {
	case m.result == nil && m.err != nil:
		b.WriteString(failStyle.Render("Import not started"))
		b.WriteString("\n")
		b.WriteString(core.FormatUserError(m.err))
		b.WriteString("\n")
		return m.withHelp(&b)

	case m.result == nil:
		return m.withHelp(&b)
	}

	res := m.result
	switch res.State {
	case core.StateCompleted:
		b.WriteString(successStyle.Render("Import complete"))
	case core.StateCancelled:
		b.WriteString(cancelStyle.Render("Import cancelled"))
	default:
		b.WriteString(failStyle.Render("Import failed"))
	}
	b.WriteString("\n\n")

	for _, p := range res.Pages {
		fmt.Fprintf(&b, "  %-20s %d records", p.Page, p.Records)
		if p.Skipped > 0 {
			fmt.Fprintf(&b, ", %d skipped", p.Skipped)
		}
		b.WriteString("\n")
	}
	if res.Error != "" {
		b.WriteString(failStyle.Render(res.Error))
		b.WriteString("\n")
	}

	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(&b, "\n%d warnings\n", n)
		for _, w := range res.Warnings[:min(n, maxListedWarnings)] {
			fmt.Fprintf(&b, "  %s line %d, %s: %s\n", w.Page, w.Line, w.Column, w.Message)
		}
	}

	if m.output != "" {
		fmt.Fprintf(&b, "\nWritten to %s\n", m.output)
	}
	if m.err != nil {
		b.WriteString(failStyle.Render(core.FormatUserError(m.err)))
		b.WriteString("\n")
	}
	return m.withHelp(&b)
}

func (m *Model) withHelp(b *strings.Builder) string {
	if m.root != nil {
		b.WriteString(helpStyle.Render("enter back to menu • q quit"))
	}
	return b.String()
}

// Run runs m to completion on the terminal.
func Run(ctx context.Context, m *Model, opts ...tea.ProgramOption) (*Model, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return m, err
	}
	return final.(*Model), nil
}
