package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

// Server serves the REST API on the configured address.
type Server struct {
	srv     *http.Server
	handler *Handler
}

func NewServer(cfg *config.AppConfig, handler *Handler) *Server {
	return &Server{
		handler: handler,
		srv: &http.Server{
			Addr:              cfg.HTTPAddr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.HTTPReadTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	s.srv.Handler = withRequestLog(s.handler.Routes())
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	logger.Info().Str("addr", s.srv.Addr).Msg("starting http api")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger := log.FromCtx(r.Context())
		ev := logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

type identityKey struct{}

func identity(ctx context.Context) core.KeyInfo {
	info, _ := ctx.Value(identityKey{}).(core.KeyInfo)
	return info
}

// requireKey checks the X-API-Key header. A missing key is 403, an unknown or
// inactive one 401.
func (h *Handler) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		info, ok := h.keys.ValidateContext(r.Context(), key)
		if !ok {
			if key == "" {
				writeError(w, http.StatusForbidden, "API key required. Use header: "+apiKeyHeader)
				return
			}
			writeError(w, http.StatusUnauthorized, "Invalid or inactive API key")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, info)
		logger := log.FromCtx(ctx).With().Str("user_id", info.UserID).Logger()
		next(w, r.WithContext(logger.WithContext(ctx)))
	}
}
