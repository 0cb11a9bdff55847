package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/service/analytics"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	defaultHistoryLimit = 10
	defaultPreviewSize  = 3
	mcpUserID           = "mcp"
)

type Deps struct {
	Threads   core.ThreadsRepository
	Messages  core.MessagesRepository
	Memory    core.Memory
	Chat      core.Chat
	Embedder  core.Embedder
	Retrieval core.RetrievalLog
	// PreviewSize is the number of selected turns kept in a retrieval log entry.
	PreviewSize int
}

// Server exposes thread storage, context building and chat turns as MCP tools
// over stdio.
type Server struct {
	deps Deps
	srv  *server.MCPServer
	in   io.Reader
	out  io.Writer
}

func NewServer(deps Deps, in io.Reader, out io.Writer) *Server {
	s := &Server{
		deps: deps,
		srv:  server.NewMCPServer(core.AppName, core.AppVersion, server.WithToolCapabilities(true)),
		in:   in,
		out:  out,
	}
	s.register()
	return s
}

func (s *Server) register() {
	s.srv.AddTool(mcp.NewTool("create_thread",
		mcp.WithDescription("Create a new conversation thread"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Thread name")),
	), s.createThread)

	s.srv.AddTool(mcp.NewTool("list_threads",
		mcp.WithDescription("List conversation threads, newest first"),
	), s.listThreads)

	s.srv.AddTool(mcp.NewTool("append_message",
		mcp.WithDescription("Append a message to a thread. User and assistant messages are embedded."),
		mcp.WithNumber("thread_id", mcp.Required(), mcp.Description("Thread id")),
		mcp.WithString("role", mcp.Required(), mcp.Description("user, assistant or system")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message text")),
	), s.appendMessage)

	s.srv.AddTool(mcp.NewTool("thread_history",
		mcp.WithDescription("Most recent messages of a thread, oldest first"),
		mcp.WithNumber("thread_id", mcp.Required(), mcp.Description("Thread id")),
		mcp.WithNumber("limit", mcp.Description("Number of messages")),
	), s.threadHistory)

	s.srv.AddTool(mcp.NewTool("build_context",
		mcp.WithDescription("Store a query as a user message, then select the most relevant earlier turns of the thread within a token budget"),
		mcp.WithNumber("thread_id", mcp.Required(), mcp.Description("Thread id")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query text")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of turns")),
		mcp.WithNumber("max_tokens", mcp.Description("Token budget including the query")),
	), s.buildContext)

	s.srv.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Run a full chat turn with memory in a thread"),
		mcp.WithNumber("thread_id", mcp.Required(), mcp.Description("Thread id")),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
	), s.chat)

	s.srv.AddTool(mcp.NewTool("retrieval_analytics",
		mcp.WithDescription("Aggregate statistics over all retrievals"),
	), s.analytics)
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("serving MCP over stdio")
	stdio := server.NewStdioServer(s.srv)
	err := stdio.Listen(ctx, s.in, s.out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return nil
}

func (s *Server) createThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	thread, err := s.deps.Threads.CreateThread(ctx, name)
	if err != nil {
		return toolError(ctx, "create thread", err), nil
	}
	return jsonResult(thread)
}

func (s *Server) listThreads(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threads, err := s.deps.Threads.ListThreads(ctx)
	if err != nil {
		return toolError(ctx, "list threads", err), nil
	}
	return jsonResult(map[string]any{"threads": threads})
}

func (s *Server) appendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID, err := requireThreadID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	role, err := req.RequireString("role")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !core.IsValidRole(role) {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %q", core.ErrInvalidRole, role)), nil
	}

	id, err := s.store(ctx, threadID, core.Message{Role: role, Content: content})
	if err != nil {
		return toolError(ctx, "append message", err), nil
	}
	return jsonResult(map[string]any{"message_id": id, "thread_id": threadID})
}

func (s *Server) threadHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID, err := requireThreadID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	msgs, err := s.deps.Messages.History(ctx, threadID, limit)
	if err != nil {
		return toolError(ctx, "history", err), nil
	}
	if msgs == nil {
		msgs = []core.Message{}
	}
	return jsonResult(map[string]any{"thread_id": threadID, "messages": msgs})
}

func (s *Server) buildContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID, err := requireThreadID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Candidates leave out the newest message of the thread, so the query goes
	// in first and every earlier turn stays eligible.
	if _, err := s.store(ctx, threadID, core.Message{Role: core.RoleUser, Content: query, UserID: mcpUserID}); err != nil {
		return toolError(ctx, "store query", err), nil
	}

	res, err := s.deps.Memory.BuildContext(ctx, threadID, query, core.ContextOptions{
		TopK:      req.GetInt("top_k", 0),
		MaxTokens: req.GetInt("max_tokens", 0),
	})
	if err != nil {
		return toolError(ctx, "build context", err), nil
	}

	preview := s.deps.PreviewSize
	if preview <= 0 {
		preview = defaultPreviewSize
	}
	s.deps.Retrieval.Record(ctx, analytics.NewEntry(threadID, query, res.Turns, res.TokensUsed, 0, preview))

	return jsonResult(res)
}

// store embeds user and assistant messages and appends msg to the thread.
func (s *Server) store(ctx context.Context, threadID int64, msg core.Message) (int64, error) {
	if core.Embeddable(msg.Role) {
		vec, err := s.deps.Embedder.Embed(ctx, msg.Content)
		if err != nil {
			return 0, fmt.Errorf("failed to embed message: %w", err)
		}
		msg.Embedding = vec
	}
	return s.deps.Messages.AppendMessage(ctx, threadID, msg)
}

func (s *Server) chat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID, err := requireThreadID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.deps.Chat.Turn(ctx, threadID, "mcp", message)
	if err != nil {
		return toolError(ctx, "chat", err), nil
	}
	return jsonResult(res)
}

func (s *Server) analytics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, _, err := s.deps.Retrieval.Stats(ctx)
	if err != nil {
		return toolError(ctx, "analytics", err), nil
	}
	return jsonResult(stats)
}

func requireThreadID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireFloat("thread_id")
	if err != nil {
		return 0, err
	}
	if id <= 0 || id != float64(int64(id)) {
		return 0, fmt.Errorf("invalid thread_id: %v", id)
	}
	return int64(id), nil
}

func toolError(ctx context.Context, op string, err error) *mcp.CallToolResult {
	log.FromCtx(ctx).Warn().Err(err).Str("op", op).Msg("mcp tool failed")
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", op, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
