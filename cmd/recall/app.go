package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/providers/embed"
	"github.com/sandevgo/recall/internal/providers/llm"
	"github.com/sandevgo/recall/internal/service/analytics"
	"github.com/sandevgo/recall/internal/service/auth"
	"github.com/sandevgo/recall/internal/service/chat"
	"github.com/sandevgo/recall/internal/service/command"
	"github.com/sandevgo/recall/internal/service/memory"
	"github.com/sandevgo/recall/internal/service/state"
	"github.com/sandevgo/recall/internal/storage/sqlite"
	"github.com/sandevgo/recall/internal/transport"
	"github.com/sandevgo/recall/pkg/srv"
	"github.com/sandevgo/recall/pkg/tokens"
)

// Store is the persistence half of the app: enough for the offline
// subcommands that never talk to a model.
type Store struct {
	Cfg       *config.AppConfig
	DB        *sql.DB
	Threads   *sqlite.ThreadsRepo
	Messages  *sqlite.MessagesRepo
	Retrieval *analytics.Logger
	Keys      *auth.KeyStore
}

func openStore(ctx context.Context) (*Store, error) {
	cfg := config.NewAppConfig(ctx)

	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &Store{
		Cfg:       cfg,
		DB:        db,
		Threads:   sqlite.NewThreadsRepo(db),
		Messages:  sqlite.NewMessagesRepo(db),
		Retrieval: analytics.NewLogger(cfg.GetRetrievalLogPath()),
		Keys:      auth.NewKeyStore(cfg.GetAPIKeysPath(), cfg.APIKeyEnabled),
	}, nil
}

// App holds every long-lived component. It is built once per process and
// handed to the transports.
type App struct {
	*Store

	RetrievalCfg *config.RetrievalConfig
	EmbeddingCfg *config.EmbeddingConfig
	Embedder     core.Embedder
	LLM          *llm.DynamicProvider
	Memory       *memory.Memory
	Chat         *chat.Service
	State        *state.GlobalState
	Router       *command.Router
	Handler      *transport.Handler

	cleanups []srv.Service
}

func NewApp(ctx context.Context) (*App, error) {
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	a := &App{Store: store}
	a.cleanups = append(a.cleanups, srv.NewCleanup(store.DB.Close))

	a.RetrievalCfg = config.NewRetrievalConfig(ctx)
	a.EmbeddingCfg = config.NewEmbeddingConfig(ctx)

	counter, err := tokens.New(a.RetrievalCfg.Tokenizer)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	embedder, closeEmbedder, err := embed.NewFromConfig(ctx, a.EmbeddingCfg)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("failed to initialize embedder: %w", err))
	}
	a.Embedder = embedder
	a.cleanups = append(a.cleanups, srv.NewCleanup(func() error {
		closeEmbedder()
		return nil
	}))

	a.LLM, err = llm.NewDynamicProvider(ctx, store.Cfg)
	if err != nil {
		return nil, a.fail(ctx, fmt.Errorf("failed to initialize LLM provider: %w", err))
	}

	a.Memory = memory.NewMemory(a.RetrievalCfg, store.Messages, embedder, counter, a.EmbeddingCfg.Timeout)
	a.Chat = chat.NewService(
		store.Threads,
		store.Messages,
		a.Memory,
		embedder,
		a.LLM,
		counter,
		store.Retrieval,
		chat.NewPrompter(store.Cfg.GetSystemPath()),
		chat.Options{
			EmbedTimeout:    a.EmbeddingCfg.Timeout,
			GenerateTimeout: store.Cfg.GenerateTimeout,
			PreviewSize:     a.RetrievalCfg.PreviewSize,
			TopK:            a.RetrievalCfg.TopK,
			MaxTokens:       a.RetrievalCfg.MaxTokens,
		},
	)

	a.State = state.NewGlobalState(a.LLM, store.Threads)
	a.Router = command.NewRouter(command.Deps{
		Provider:     store.Cfg.Provider,
		State:        a.State,
		Models:       a.LLM,
		Threads:      store.Threads,
		Messages:     store.Messages,
		Retrieval:    store.Retrieval,
		HistoryLimit: store.Cfg.HistoryLimit,
	})
	a.Handler = transport.NewHandler(a.Chat, a.Router, a.State)

	return a, nil
}

// Cleanups releases storage and caches after the transports have stopped.
func (a *App) Cleanups() []srv.Service {
	return a.cleanups
}

func (a *App) fail(ctx context.Context, err error) error {
	srv.ShutdownServices(ctx, a.cleanups)
	return err
}
