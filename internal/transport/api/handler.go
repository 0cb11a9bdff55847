package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/service/auth"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	apiKeyHeader        = "X-API-Key"
	defaultHistoryLimit = 10
	maxBodyBytes        = 1 << 20
)

type ChatService interface {
	TurnWithOptions(ctx context.Context, threadID int64, userID, input string, opts core.TurnOptions) (*core.TurnResult, error)
}

type KeyManager interface {
	Generate(ctx context.Context, userID, name string, rateLimit int) (string, error)
	ValidateContext(ctx context.Context, key string) (core.KeyInfo, bool)
	Revoke(ctx context.Context, key, userID string) error
	Delete(ctx context.Context, key, userID string) error
	List(ctx context.Context, userID string) ([]auth.KeySummary, error)
}

type Handler struct {
	threads   core.ThreadsRepository
	messages  core.MessagesRepository
	chat      ChatService
	retrieval core.RetrievalLog
	keys      KeyManager
	model     func() string
}

func NewHandler(
	threads core.ThreadsRepository,
	messages core.MessagesRepository,
	chat ChatService,
	retrieval core.RetrievalLog,
	keys KeyManager,
	model func() string,
) *Handler {
	return &Handler{
		threads:   threads,
		messages:  messages,
		chat:      chat,
		retrieval: retrieval,
		keys:      keys,
		model:     model,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /threads/create", h.requireKey(h.CreateThread))
	mux.HandleFunc("GET /threads/list", h.requireKey(h.ListThreads))
	mux.HandleFunc("GET /threads/{id}/history", h.requireKey(h.History))
	mux.HandleFunc("POST /chat", h.requireKey(h.Chat))
	mux.HandleFunc("GET /analytics", h.requireKey(h.Analytics))

	mux.HandleFunc("POST /auth/generate-key", h.GenerateKey)
	mux.HandleFunc("GET /auth/keys", h.requireKey(h.ListKeys))
	mux.HandleFunc("POST /auth/revoke-key", h.requireKey(h.RevokeKey))
	mux.HandleFunc("DELETE /auth/delete-key", h.requireKey(h.DeleteKey))
	mux.HandleFunc("GET /auth/status", h.requireKey(h.Status))

	return mux
}

type CreateThreadRequest struct {
	ThreadName string `json:"thread_name"`
}

type ChatRequest struct {
	ThreadID  int64  `json:"thread_id"`
	Message   string `json:"message"`
	MaxTokens int    `json:"max_tokens"`
	TopK      int    `json:"top_k"`
}

type GenerateKeyRequest struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	RateLimit int    `json:"rate_limit"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
		"model":    h.model(),
	})
}

func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req CreateThreadRequest
	if !decode(w, r, &req) {
		return
	}

	thread, err := h.threads.CreateThread(r.Context(), req.ThreadName)
	if err != nil {
		h.fail(w, r, "create thread", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id":   thread.ID,
		"thread_name": thread.Name,
		"message":     fmt.Sprintf("Thread '%s' created successfully", thread.Name),
	})
}

func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threads.ListThreads(r.Context())
	if err != nil {
		h.fail(w, r, "list threads", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	threadID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid thread ID")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
	}

	msgs, err := h.messages.History(r.Context(), threadID, limit)
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}

	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyMessage{Role: m.Role, Content: m.Content})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": threadID,
		"messages":  out,
		"count":     len(out),
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ThreadID <= 0 {
		writeError(w, http.StatusBadRequest, "thread_id is required")
		return
	}

	res, err := h.chat.TurnWithOptions(r.Context(), req.ThreadID, identity(r.Context()).UserID, req.Message, core.TurnOptions{
		TopK:      req.TopK,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		h.fail(w, r, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, _, err := h.retrieval.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var req GenerateKeyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	key, err := h.keys.Generate(r.Context(), req.UserID, req.Name, req.RateLimit)
	if err != nil {
		h.fail(w, r, "generate key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"api_key": key,
		"message": "API key generated successfully. Save it securely!",
	})
}

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	userID := identity(r.Context()).UserID
	keys, err := h.keys.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "list keys", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"keys":    keys,
		"count":   len(keys),
	})
}

func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("api_key")
	if err := h.keys.Revoke(r.Context(), key, identity(r.Context()).UserID); err != nil {
		h.fail(w, r, "revoke key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "API key revoked successfully"})
}

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("api_key")
	if err := h.keys.Delete(r.Context(), key, identity(r.Context()).UserID); err != nil {
		h.fail(w, r, "delete key", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "API key deleted successfully"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	info := identity(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       info.UserID,
		"name":          info.Name,
		"rate_limit":    info.RateLimit,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromCtx(r.Context()).Error().Err(err).Str("op", op).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrThreadNotFound), errors.Is(err, auth.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEmptyContent), errors.Is(err, core.ErrInvalidRole), errors.Is(err, core.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
