package settings

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type field int

const (
	replyField field = iota
	triggerField
)

type formStyles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	counter lipgloss.Style
	over    lipgloss.Style
	failure lipgloss.Style
	help    lipgloss.Style
}

func newFormStyles() formStyles {
	muted := lipgloss.Color("#9ca3d8")
	pink := lipgloss.Color("#ff71ce")

	return formStyles{
		title:   lipgloss.NewStyle().Bold(true).MarginBottom(1),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#01cdfe")),
		counter: lipgloss.NewStyle().Foreground(muted),
		over:    lipgloss.NewStyle().Foreground(pink).Bold(true),
		failure: lipgloss.NewStyle().Foreground(pink).Bold(true),
		help:    lipgloss.NewStyle().Foreground(muted).MarginTop(1),
	}
}

type formModel struct {
	reply   textarea.Model
	trigger textinput.Model
	focus   field
	styles  formStyles

	err       error
	submitted bool
	cancelled bool
}

func newFormModel(initial Settings) formModel {
	reply := textarea.New()
	reply.Placeholder = "Back online"
	reply.ShowLineNumbers = false
	reply.CharLimit = 0
	reply.SetWidth(60)
	reply.SetHeight(4)
	reply.SetValue(initial.ReplyMessage)
	reply.Focus()

	trigger := textinput.New()
	trigger.Placeholder = "PING"
	trigger.Prompt = "> "
	trigger.Width = 50
	trigger.SetValue(initial.Trigger)

	return formModel{
		reply:   reply,
		trigger: trigger,
		focus:   replyField,
		styles:  newFormStyles(),
	}
}

func (m formModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "tab", "shift+tab":
			return m.switchFocus()
		case "ctrl+s":
			return m.submit()
		case "enter":
			if m.focus == triggerField {
				return m.submit()
			}
		}
	}

	var cmd tea.Cmd
	if m.focus == replyField {
		m.reply, cmd = m.reply.Update(msg)
	} else {
		m.trigger, cmd = m.trigger.Update(msg)
	}

	return m, cmd
}

func (m formModel) switchFocus() (tea.Model, tea.Cmd) {
	if m.focus == replyField {
		m.focus = triggerField
		m.reply.Blur()
		return m, m.trigger.Focus()
	}

	m.focus = replyField
	m.trigger.Blur()
	return m, m.reply.Focus()
}

func (m formModel) submit() (tea.Model, tea.Cmd) {
	result := m.result()

	if err := Validate(result); err != nil {
		m.err = err
		return m, nil
	}

	m.err = nil
	m.submitted = true
	return m, tea.Quit
}

func (m formModel) result() Settings {
	return Settings{
		ReplyMessage: strings.TrimSpace(m.reply.Value()),
		Trigger:      m.trigger.Value(),
	}
}

func (m formModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.styles.title.Render("Mesh responder settings") + "\n")

	count := utf8.RuneCountInString(m.reply.Value())
	counterStyle := m.styles.counter
	if count > MaxReplyLength {
		counterStyle = m.styles.over
	}

	b.WriteString(m.styles.label.Render(fmt.Sprintf("Reply message (max %d characters)", MaxReplyLength)) + "\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Bottom,
		m.reply.View(),
		" "+counterStyle.Render(fmt.Sprintf("%d/%d", count, MaxReplyLength)),
	) + "\n\n")

	b.WriteString(m.styles.label.Render("Signal") + "\n")
	b.WriteString(m.trigger.View() + "\n")

	if m.err != nil {
		b.WriteString("\n" + m.styles.failure.Render(m.err.Error()) + "\n")
	}

	b.WriteString(m.styles.help.Render("tab: switch field • enter on signal or ctrl+s: submit • esc: cancel") + "\n")

	return b.String()
}

// FormEditor asks for the settings in a terminal form.
type FormEditor struct {
	Input  io.Reader
	Output io.Writer
}

// Edit runs the form on the terminal unless Input or Output are set.
func (e *FormEditor) Edit(initial Settings) (Settings, error) {
	var options []tea.ProgramOption
	if e.Input != nil {
		options = append(options, tea.WithInput(e.Input))
	}
	if e.Output != nil {
		options = append(options, tea.WithOutput(e.Output))
	}

	final, err := tea.NewProgram(newFormModel(initial), options...).Run()
	if err != nil {
		return Settings{}, fmt.Errorf("settings form: %w", err)
	}

	m, ok := final.(formModel)
	if !ok || !m.submitted {
		return Settings{}, nil
	}

	return m.result(), nil
}
