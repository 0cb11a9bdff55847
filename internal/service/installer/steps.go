package installer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type choice struct {
	label string
	value string
}

// ChoiceStep stores the selected value under key.
type ChoiceStep struct {
	title   string
	key     string
	choices []choice
	cursor  int
}

func NewChoiceStep(title, key string, choices ...choice) Step {
	return &ChoiceStep{title: title, key: key, choices: choices}
}

func (s *ChoiceStep) Init() tea.Cmd {
	return nil
}

func (s *ChoiceStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			state.EnvVars[s.key] = s.choices[s.cursor].value
			return nil, nil
		}
	}
	return s, nil
}

func (s *ChoiceStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString(s.title + "\n\n")
	for i, c := range s.choices {
		if s.cursor == i {
			b.WriteString(selStyle.Render("> "+c.label) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+c.label) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}

// InputStep asks for one value. It completes immediately when skip reports true.
type InputStep struct {
	prompt   string
	key      string
	input    textinput.Model
	skip     func(*InstallState) bool
	validate func(string) error
	err      error
	prepared bool
	fallback func(*InstallState) string
}

type inputOption func(*InputStep)

func secret() inputOption {
	return func(s *InputStep) {
		s.input.EchoMode = textinput.EchoPassword
		s.input.EchoCharacter = '*'
	}
}

func onlyIf(pred func(*InstallState) bool) inputOption {
	return func(s *InputStep) {
		s.skip = func(st *InstallState) bool { return !pred(st) }
	}
}

func validated(fn func(string) error) inputOption {
	return func(s *InputStep) { s.validate = fn }
}

// defaultFrom computes the placeholder from earlier answers.
func defaultFrom(fn func(*InstallState) string) inputOption {
	return func(s *InputStep) { s.fallback = fn }
}

func NewInputStep(prompt, key, placeholder string, opts ...inputOption) Step {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()

	s := &InputStep{prompt: prompt, key: key, input: ti}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InputStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *InputStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.skip != nil && s.skip(state) {
		return nil, nil
	}
	if !s.prepared {
		if s.fallback != nil {
			s.input.Placeholder = s.fallback(state)
		}
		s.prepared = true
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		val := strings.TrimSpace(s.input.Value())
		if val == "" {
			val = s.input.Placeholder
		}
		if s.validate != nil {
			if err := s.validate(val); err != nil {
				s.err = err
				return s, nil
			}
		}
		if val != "" {
			state.EnvVars[s.key] = val
		}
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *InputStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString(s.prompt + "\n\n" + s.input.View() + "\n")
	if s.err != nil {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%v", s.err)) + "\n")
	}
	b.WriteString("\n(press enter to confirm)\n")
	return b.String()
}

// FinalizationStep derives the remaining settings from the answers.
type FinalizationStep struct{}

func NewFinalizationStep() Step {
	return &FinalizationStep{}
}

func (s *FinalizationStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *FinalizationStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	state.Finalize()
	return nil, nil
}

func (s *FinalizationStep) View(state *InstallState) string {
	return "Finalizing configuration...\n"
}

// SaveStep writes .env and the default SYSTEM.md into the runtime directory.
type SaveStep struct {
	dir string
	err error
}

func NewSaveStep(dir string) Step {
	return &SaveStep{dir: dir}
}

func (s *SaveStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.err != nil {
		return s, nil
	}
	if _, err := state.WriteEnv(s.dir); err != nil {
		s.err = err
		return s, nil
	}
	if err := InitFiles(s.dir); err != nil {
		s.err = err
		return s, nil
	}
	return nil, nil
}

func (s *SaveStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	return "Saving configuration...\n"
}
