package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/service/analytics"
	"github.com/sandevgo/recall/pkg/log"
)

type Options struct {
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
	PreviewSize     int
	// TopK and MaxTokens of zero defer to the memory defaults.
	TopK      int
	MaxTokens int
}

// Service runs one conversational turn against a thread's long-term memory.
type Service struct {
	threads   core.ThreadsRepository
	messages  core.MessagesRepository
	memory    core.Memory
	embedder  core.Embedder
	generator core.Generator
	counter   core.TokenCounter
	retrieval core.RetrievalLog
	prompter  *Prompter
	opts      Options
}

func NewService(
	threads core.ThreadsRepository,
	messages core.MessagesRepository,
	memory core.Memory,
	embedder core.Embedder,
	generator core.Generator,
	counter core.TokenCounter,
	retrieval core.RetrievalLog,
	prompter *Prompter,
	opts Options,
) *Service {
	return &Service{
		threads:   threads,
		messages:  messages,
		memory:    memory,
		embedder:  embedder,
		generator: generator,
		counter:   counter,
		retrieval: retrieval,
		prompter:  prompter,
		opts:      opts,
	}
}

// Turn stores the user message, retrieves context, generates a reply, stores
// it and records the retrieval. Any failure before the reply is stored is
// returned; nothing is persisted for the assistant in that case.
func (s *Service) Turn(ctx context.Context, threadID int64, userID, input string) (*core.TurnResult, error) {
	return s.TurnWithOptions(ctx, threadID, userID, input, core.TurnOptions{})
}

// TurnWithOptions is Turn with a per-call retrieval budget. Zero fields use
// the service defaults.
func (s *Service) TurnWithOptions(ctx context.Context, threadID int64, userID, input string, topts core.TurnOptions) (*core.TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, core.ErrEmptyContent
	}

	turnID := uuid.NewString()
	logger := log.FromCtx(ctx).With().
		Str("turn_id", turnID).
		Int64("thread_id", threadID).
		Logger()
	ctx = logger.WithContext(ctx)

	if _, err := s.threads.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	queryVec, err := s.embed(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to embed user message: %w", err)
	}

	if _, err := s.messages.AppendMessage(ctx, threadID, core.Message{
		Role:      core.RoleUser,
		Content:   input,
		Embedding: queryVec,
		UserID:    userID,
	}); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	topK, maxTokens := s.opts.TopK, s.opts.MaxTokens
	if topts.TopK > 0 {
		topK = topts.TopK
	}
	if topts.MaxTokens > 0 {
		maxTokens = topts.MaxTokens
	}

	retrieved, err := s.memory.BuildContext(ctx, threadID, input, core.ContextOptions{
		TopK:           topK,
		MaxTokens:      maxTokens,
		QueryEmbedding: queryVec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build context: %w", err)
	}

	prompt := s.prompter.Build(retrieved.Turns, input)

	response, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	if strings.TrimSpace(response) != "" {
		respVec, err := s.embed(ctx, response)
		if err != nil {
			return nil, fmt.Errorf("failed to embed response: %w", err)
		}

		if _, err := s.messages.AppendMessage(ctx, threadID, core.Message{
			Role:      core.RoleAssistant,
			Content:   response,
			Embedding: respVec,
		}); err != nil {
			return nil, fmt.Errorf("failed to save assistant message: %w", err)
		}
	} else {
		logger.Warn().Msg("generator returned an empty response, not storing it")
	}

	tokenCount := s.counter.Count(prompt)
	entry := analytics.NewEntry(threadID, input, retrieved.Turns, tokenCount, utf8.RuneCountInString(response), s.opts.PreviewSize)
	entry.EventID = turnID
	s.retrieval.Record(ctx, entry)

	logger.Info().
		Int("retrieved", len(retrieved.Turns)).
		Int("skipped", retrieved.Skipped).
		Int("prompt_tokens", tokenCount).
		Msg("turn completed")

	return &core.TurnResult{
		TurnID:         turnID,
		ThreadID:       threadID,
		UserMessage:    input,
		Response:       response,
		RetrievedCount: len(retrieved.Turns),
		TokenCount:     tokenCount,
	}, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()
	return s.embedder.Embed(ctx, text)
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()
	return s.generator.Generate(ctx, prompt)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
