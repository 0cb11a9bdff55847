package embed

import (
	"strings"
	"unicode"
)

// Tokenizer is what the chunker needs from a token encoder.
type Tokenizer interface {
	Count(text string) int
	Encode(text string) []int
	Decode(ids []int) string
}

type Chunk struct {
	Text      string
	TokenSize int
	Index     int
}

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxTokens:     400,
		OverlapTokens: 50,
	}
}

type Chunker struct {
	tk  Tokenizer
	cfg ChunkerConfig
}

func NewChunker(tk Tokenizer, cfg ChunkerConfig) *Chunker {
	return &Chunker{tk: tk, cfg: cfg}
}

// Split packs whole sentences into chunks of at most MaxTokens, carrying up
// to OverlapTokens of trailing sentences into the next chunk. Sentences larger
// than the limit are cut on token boundaries.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []Chunk
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:      strings.TrimSpace(current.String()),
			TokenSize: currentTokens,
			Index:     len(chunks),
		})
		current.Reset()
		currentTokens = 0
	}

	for i, sentence := range sentences {
		sentenceTokens := c.tk.Count(sentence)

		if sentenceTokens > c.cfg.MaxTokens {
			flush()
			for _, sc := range c.splitLong(sentence) {
				sc.Index = len(chunks)
				chunks = append(chunks, sc)
			}
			continue
		}

		if currentTokens+sentenceTokens > c.cfg.MaxTokens && current.Len() > 0 {
			flush()

			overlap := c.overlap(sentences, i)
			current.WriteString(overlap)
			currentTokens = c.tk.Count(overlap)
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += sentenceTokens
	}

	flush()
	return chunks
}

// splitLong slices a sentence on raw token boundaries.
func (c *Chunker) splitLong(text string) []Chunk {
	ids := c.tk.Encode(text)

	var chunks []Chunk
	for i := 0; i < len(ids); i += c.cfg.MaxTokens {
		end := min(i+c.cfg.MaxTokens, len(ids))
		part := strings.TrimSpace(c.tk.Decode(ids[i:end]))
		if part == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:      part,
			TokenSize: end - i,
		})
	}
	return chunks
}

func (c *Chunker) overlap(sentences []string, currentIdx int) string {
	if currentIdx == 0 || c.cfg.OverlapTokens <= 0 {
		return ""
	}

	var parts []string
	tokens := 0

	for i := currentIdx - 1; i >= 0 && tokens < c.cfg.OverlapTokens; i-- {
		parts = append([]string{sentences[i]}, parts...)
		tokens += c.tk.Count(sentences[i])
	}

	return strings.Join(parts, " ")
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true, '…': true,
}

func splitSentences(text string) []string {
	var sentences []string

	for _, para := range splitParagraphs(text) {
		var current strings.Builder
		runes := []rune(para)

		for i, r := range runes {
			current.WriteRune(r)

			if !sentenceEnders[r] {
				continue
			}
			// A sentence ends at punctuation followed by space, end of text or CJK.
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || isCJK(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) == 0 && text != "" {
		return []string{text}
	}
	return sentences
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		// soft wraps inside a paragraph
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
