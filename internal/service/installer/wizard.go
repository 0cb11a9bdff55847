package installer

import (
	"errors"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	selStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("5"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

var ErrInterrupted = errors.New("recall setup interrupted")

// Step represents a single step in the installation wizard
type Step interface {
	Init() tea.Cmd
	Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd)
	View(state *InstallState) string
}

var defaultModels = map[string]string{
	"ollama":     "qwen2.5-coder:1.5b",
	"openai":     "gpt-4o-mini",
	"openrouter": "openai/gpt-4o-mini",
	"anthropic":  "claude-3-5-haiku-latest",
	"custom":     "",
}

func providerIs(names ...string) func(*InstallState) bool {
	return func(s *InstallState) bool {
		for _, n := range names {
			if s.provider() == n {
				return true
			}
		}
		return false
	}
}

func channelIs(name string) func(*InstallState) bool {
	return func(s *InstallState) bool { return s.EnvVars[keyChannel] == name }
}

func requireInt(v string) error {
	if _, err := strconv.ParseInt(v, 10, 64); err != nil {
		return fmt.Errorf("expected a numeric id, got %q", v)
	}
	return nil
}

func requireValue(v string) error {
	if v == "" {
		return errors.New("a value is required")
	}
	return nil
}

func getSteps(runtimePath string) []Step {
	return []Step{
		NewChoiceStep("Select the generation provider:", "RECALL_LLM_PROVIDER",
			choice{"Ollama (local)", "ollama"},
			choice{"OpenAI", "openai"},
			choice{"OpenRouter", "openrouter"},
			choice{"Anthropic", "anthropic"},
			choice{"Custom OpenAI-compatible", "custom"},
		),
		NewInputStep("Enter Ollama base URL:", "RECALL_OLLAMA_BASE_URL", "http://127.0.0.1:11434",
			onlyIf(providerIs("ollama"))),
		NewInputStep("Enter the custom endpoint base URL:", "RECALL_CUSTOM_OPENAI_BASE_URL", "",
			onlyIf(providerIs("custom")), validated(requireValue)),
		NewInputStep("Enter your OpenAI API key:", "RECALL_OPENAI_API_KEY", "",
			onlyIf(providerIs("openai")), secret(), validated(requireValue)),
		NewInputStep("Enter your OpenRouter API key:", "RECALL_OPENROUTER_API_KEY", "",
			onlyIf(providerIs("openrouter")), secret(), validated(requireValue)),
		NewInputStep("Enter your Anthropic API key:", "RECALL_ANTHROPIC_API_KEY", "",
			onlyIf(providerIs("anthropic")), secret(), validated(requireValue)),
		NewInputStep("Enter the API key for the custom endpoint (optional):", "RECALL_CUSTOM_OPENAI_API_KEY", "",
			onlyIf(providerIs("custom")), secret()),
		NewInputStep("Model name:", "RECALL_MODEL", "",
			defaultFrom(func(s *InstallState) string { return defaultModels[s.provider()] }),
			validated(requireValue)),
		NewChoiceStep("Select the embedding provider:", "RECALL_EMBEDDING_PROVIDER",
			choice{"Ollama (nomic-embed-text)", "ollama"},
			choice{"OpenAI (text-embedding-3-small)", "openai"},
		),
		NewInputStep("Enter the OpenAI API key for embeddings:", "RECALL_EMBEDDING_API_KEY", "",
			onlyIf(func(s *InstallState) bool {
				return s.EnvVars["RECALL_EMBEDDING_PROVIDER"] == "openai" && s.EnvVars["RECALL_OPENAI_API_KEY"] == ""
			}), secret(), validated(requireValue)),
		NewChoiceStep("Select how you will talk to Recall:", keyChannel,
			choice{"Terminal (CLI)", channelCLI},
			choice{"Telegram", channelTelegram},
			choice{"HTTP API", channelHTTP},
		),
		NewInputStep("Enter your Telegram bot token:", "RECALL_TELEGRAM_TOKEN", "",
			onlyIf(channelIs(channelTelegram)), secret(), validated(requireValue)),
		NewInputStep("Enter your Telegram user id (only this user is answered):", "RECALL_TELEGRAM_OWNER_ID", "",
			onlyIf(channelIs(channelTelegram)), validated(requireInt)),
		NewInputStep("HTTP listen address:", "RECALL_HTTP_ADDR", ":8000",
			onlyIf(channelIs(channelHTTP))),
		NewFinalizationStep(),
		NewSaveStep(runtimePath),
	}
}

type nextMsg struct{}

// model is the main Bubble Tea model that orchestrates the steps
type model struct {
	steps       []Step
	currentStep int
	state       *InstallState
	quitting    bool
	width       int
	height      int
}

func initialModel(runtimePath string) model {
	return model{
		steps: getSteps(runtimePath),
		state: NewInstallState(),
	}
}

func (m model) Init() tea.Cmd {
	if len(m.steps) > 0 {
		return m.steps[0].Init()
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, tea.Quit
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	}

	// Steps that complete without input (skipped or automatic) chain through
	// in a single update.
	for m.currentStep < len(m.steps) {
		next, cmd := m.steps[m.currentStep].Update(msg, m.state, m.width, m.height)
		if next != nil {
			m.steps[m.currentStep] = next
			return m, cmd
		}

		m.currentStep++
		if m.currentStep >= len(m.steps) {
			return m, tea.Quit
		}
		msg = nextMsg{}
		if init := m.steps[m.currentStep].Init(); init != nil {
			return m, tea.Batch(init, func() tea.Msg { return nextMsg{} })
		}
	}
	return m, tea.Quit
}

func (m model) View() string {
	if m.quitting {
		return "Setup cancelled.\n"
	}
	if m.currentStep >= len(m.steps) {
		return "Configuration complete!\n"
	}
	return titleStyle.Render("Recall setup") + "\n\n" + m.steps[m.currentStep].View(m.state)
}

// RunWizard starts the TUI and writes the configuration into runtimePath.
func RunWizard(runtimePath string) (*InstallState, error) {
	p := tea.NewProgram(initialModel(runtimePath), tea.WithAltScreen())
	m, err := p.Run()
	if err != nil {
		return nil, err
	}

	final := m.(model)
	if final.currentStep < len(final.steps) {
		if save, ok := final.steps[final.currentStep].(*SaveStep); ok && save.err != nil {
			return nil, save.err
		}
	}
	if final.quitting {
		return nil, ErrInterrupted
	}
	return final.state, nil
}
