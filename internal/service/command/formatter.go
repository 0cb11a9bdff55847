package command

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sandevgo/recall/internal/core"
)

// ResponseFormatter renders command replies as Markdown. Transports convert
// it to HTML or plain text.
type ResponseFormatter struct{}

func NewResponseFormatter() *ResponseFormatter {
	return &ResponseFormatter{}
}

func (f *ResponseFormatter) Info(title string) string {
	return fmt.Sprintf("⚙️️ **%s**\n\n", title)
}

func (f *ResponseFormatter) Success(message string) string {
	return fmt.Sprintf("✅ **%s**\n", message)
}

func (f *ResponseFormatter) Label(label, value string) string {
	return fmt.Sprintf("**%s**  ›  `%s`\n", label, value)
}

func (f *ResponseFormatter) Usage(command string) string {
	return fmt.Sprintf("**Usage**:\n```%s```\n", command)
}

func (f *ResponseFormatter) List(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("› %s\n", item))
	}
	return sb.String()
}

func (f *ResponseFormatter) Tip(text string) string {
	return fmt.Sprintf("**Tip**: %s\n", text)
}

func (f *ResponseFormatter) Section(emoji, title, content string) string {
	return fmt.Sprintf("%s **%s**\n%s\n", emoji, title, content)
}

func (f *ResponseFormatter) Combine(sections ...string) string {
	return strings.Join(sections, "\n")
}

// Thread renders one thread as a list item, marking the session's active one.
func (f *ResponseFormatter) Thread(t core.Thread, active bool) string {
	marker := ""
	if active {
		marker = " (active)"
	}
	return fmt.Sprintf("`%d` **%s**%s, %s", t.ID, t.Name, marker, t.CreatedAt.Format("2006-01-02 15:04"))
}

// Messages renders a history slice oldest first under the thread name.
func (f *ResponseFormatter) Messages(thread string, msgs []core.Message) string {
	title := f.Info(fmt.Sprintf("History of %s", thread))
	if len(msgs) == 0 {
		return f.Combine(title, "No messages yet.")
	}

	items := make([]string, len(msgs))
	for i, m := range msgs {
		items[i] = fmt.Sprintf("**%s**: %s", m.Role, m.Content)
	}
	return f.Combine(title, f.List(items))
}

// Stats renders the retrieval log aggregate. Methods are listed by name.
func (f *ResponseFormatter) Stats(stats core.RetrievalStats) string {
	title := f.Info("Retrieval Stats")
	if stats.TotalRetrievals == 0 {
		return f.Combine(title, "No retrievals recorded yet.")
	}

	methods := make([]string, 0, len(stats.RetrievalMethods))
	for m, n := range stats.RetrievalMethods {
		methods = append(methods, fmt.Sprintf("`%s` × %d", m, n))
	}
	sort.Strings(methods)

	sections := []string{
		title,
		f.Label("Retrievals", strconv.Itoa(stats.TotalRetrievals)),
		f.Label("Avg retrieved messages", fmt.Sprintf("%.2f", stats.AvgRetrievedMessages)),
		f.Label("Avg prompt tokens", fmt.Sprintf("%.1f", stats.AvgTokenCount)),
		f.Label("Avg response length", fmt.Sprintf("%.1f", stats.AvgResponseLength)),
		f.Label("Total tokens", strconv.Itoa(stats.TotalTokensUsed)),
		f.Label("Threads", strconv.Itoa(stats.ThreadsAccessed)),
		f.List(methods),
	}
	if stats.Malformed > 0 {
		sections = append(sections, f.Tip(fmt.Sprintf("%d malformed log lines were skipped", stats.Malformed)))
	}
	return f.Combine(sections...)
}
