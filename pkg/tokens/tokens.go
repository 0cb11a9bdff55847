package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	Approx   = "approx"
	Tiktoken = "tiktoken"
)

var (
	tk     *tiktoken.Tiktoken
	tkErr  error
	tkOnce sync.Once
)

// ApproxCounter estimates tokens as one per four characters.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// TiktokenCounter counts cl100k_base tokens.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c *TiktokenCounter) Decode(ids []int) string {
	return c.enc.Decode(ids)
}

// Encoding loads the shared cl100k_base encoder once per process.
func Encoding() (*TiktokenCounter, error) {
	tkOnce.Do(func() {
		tk, tkErr = tiktoken.GetEncoding("cl100k_base")
	})
	if tkErr != nil {
		return nil, fmt.Errorf("failed to load tiktoken: %w", tkErr)
	}
	return &TiktokenCounter{enc: tk}, nil
}

// Counter is the token counting contract shared by the selector and the chunker.
type Counter interface {
	Count(text string) int
}

func New(name string) (Counter, error) {
	switch name {
	case "", Approx:
		return ApproxCounter{}, nil
	case Tiktoken:
		return Encoding()
	default:
		return nil, fmt.Errorf("unknown tokenizer: %s", name)
	}
}
