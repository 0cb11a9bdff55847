package chat

import (
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sandevgo/recall/internal/core"
)

// DefaultPersona opens every prompt unless SYSTEM.md overrides it.
const DefaultPersona = `You are Recall, an AI assistant with long-term memory.

IMPORTANT RULES:
1. Use the conversation history to give personalised answers.
2. Refer back to facts the user shared earlier (name, preferences, work).
3. Do not give generic answers when you have context.
4. Be conversational and acknowledge what you know about the user.`

const referenceHint = "When answering, explicitly reference relevant context from the conversation history."

// Prompter assembles the generation prompt. A SYSTEM.md in the runtime
// directory replaces the built-in persona and is re-read on every call.
type Prompter struct {
	systemPath string
}

func NewPrompter(systemPath string) *Prompter {
	return &Prompter{systemPath: systemPath}
}

func (p *Prompter) persona() string {
	if p.systemPath != "" {
		if content, err := os.ReadFile(p.systemPath); err == nil {
			if s := strings.TrimSpace(string(content)); s != "" {
				return s
			}
		}
	}
	return DefaultPersona
}

// Build renders persona, retrieved turns in the order given, and the question.
func (p *Prompter) Build(turns []core.Turn, question string) string {
	var sb strings.Builder

	sb.WriteString(p.persona())
	sb.WriteString("\n\n")
	sb.WriteString(referenceHint)
	sb.WriteString("\n\n")

	if len(turns) > 0 {
		sb.WriteString("=== Conversation History ===\n")
		for _, t := range turns {
			sb.WriteString(capitalize(t.Role))
			sb.WriteString(": ")
			sb.WriteString(t.Content)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("=== Current Question ===\n")
	sb.WriteString("User: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	sb.WriteString("Assistant:")

	return sb.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
