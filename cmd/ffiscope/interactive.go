package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	refStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLines = 12

type interactiveModel struct {
	err     error
	session *Session
	out     *bytes.Buffer
	heap    string
	history []string
	input   textinput.Model
	width   int
}

func newInteractiveModel(s *Session, out *bytes.Buffer, heap string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "new-object a floating=true"
	ti.Prompt = "> "
	ti.Focus()

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	ti.Width = width - 4

	return &interactiveModel{session: s, out: out, heap: heap, input: ti, width: width}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			m.exec(m.input.Value())
			m.input.SetValue("")
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) exec(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	m.err = nil
	st, err := ParseStep(line)
	if err == nil {
		err = m.session.Exec(st)
	}
	m.err = err
	for _, l := range strings.Split(strings.TrimRight(m.out.String(), "\n"), "\n") {
		if l != "" {
			m.history = append(m.history, l)
		}
	}
	m.out.Reset()
	if n := len(m.history); n > historyLines {
		m.history = m.history[n-historyLines:]
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ffiscope"))
	fmt.Fprintf(&b, " heap=%s run=%s\n\n", m.heap, m.session.ID())

	objs := m.session.Objects()
	if len(objs) == 0 {
		b.WriteString(helpStyle.Render("no objects"))
		b.WriteString("\n")
	}
	for _, o := range objs {
		state := "raw"
		if o.Wrapped {
			state = "wrapped"
		}
		fmt.Fprintf(&b, "  %-12s %#-10x %s %s\n",
			nameStyle.Render(o.Name), o.Handle, refStyle.Render(fmt.Sprintf("refs=%d", o.Refcount)), state)
	}
	st := m.session.Runtime().Stats()
	fmt.Fprintf(&b, "\n  objects=%d blocks=%d finalized=%d\n\n", st.Objects, st.Blocks, st.Finalized)

	for _, l := range m.history {
		b.WriteString(outputStyle.Render(l))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("new-object wrap drop connect emit disconnect convert iterate expect stats • esc quit"))

	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

func runInteractive(ctx context.Context, heap string) error {
	var out bytes.Buffer
	s, err := NewSession(ctx, heap, &out)
	if err != nil {
		return err
	}
	s.rt.DefineSignal("Object", "changed")

	p := tea.NewProgram(newInteractiveModel(s, &out, heap), tea.WithAltScreen())
	_, runErr := p.Run()
	if err := s.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
