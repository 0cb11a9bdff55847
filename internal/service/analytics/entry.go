package analytics

import (
	"github.com/sandevgo/recall/internal/core"
)

// excerptRunes caps the query excerpt and each preview item.
const excerptRunes = 100

// NewEntry describes one retrieval. The preview holds the first previewSize
// selected turns as "role: content".
func NewEntry(threadID int64, query string, turns []core.Turn, tokenCount, responseLength, previewSize int) core.RetrievalEntry {
	n := min(previewSize, len(turns))
	preview := make([]string, 0, max(n, 0))
	for _, t := range turns[:max(n, 0)] {
		preview = append(preview, Excerpt(t.Role+": "+t.Content))
	}

	return core.RetrievalEntry{
		ThreadID:        threadID,
		Query:           Excerpt(query),
		RetrievedCount:  len(turns),
		TokenCount:      tokenCount,
		ResponseLength:  responseLength,
		RetrievalMethod: core.RetrievalMethodHybrid,
		ContextPreview:  preview,
	}
}

// Excerpt truncates s to a fixed number of runes.
func Excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptRunes {
		return s
	}
	return string(r[:excerptRunes])
}
