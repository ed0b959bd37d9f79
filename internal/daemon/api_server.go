package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"deepshield/internal/api"
	"deepshield/internal/config"
	"deepshield/internal/logging"
	"deepshield/internal/mediastore"
	"deepshield/internal/services"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	cfg     *config.Config
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Server.Bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		cfg:    cfg,
	}

	mux := http.NewServeMux()
	requireUser := d.auth.RequireUser

	mux.HandleFunc("POST /signup", srv.handleSignup)
	mux.HandleFunc("POST /signin", srv.handleSignin)

	mux.HandleFunc("GET /api/posts", srv.handleListPosts)
	mux.Handle("POST /api/posts", requireUser(http.HandlerFunc(srv.handleCreatePost)))
	mux.Handle("GET /api/posts/user/posts", requireUser(http.HandlerFunc(srv.handleUserPosts)))
	mux.HandleFunc("GET /api/posts/old-model-analysis/{postId}", srv.handleGetSecondary)
	mux.HandleFunc("GET /api/posts/{id}", srv.handleGetPost)
	// analyze/{postId} and analyze-old-model/{postId} share a shape with
	// {id}/like and {id}/comments, so one pattern dispatches all four.
	mux.Handle("POST /api/posts/{id}/{action}", requireUser(http.HandlerFunc(srv.handlePostAction)))

	mux.Handle("GET /api/status", statusAuth(cfg.Server.APIToken, http.HandlerFunc(srv.handleStatus)))
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.Handle(mediastore.PublicPrefix+"/", http.StripPrefix(mediastore.PublicPrefix, mediaFileServer(cfg.Paths.MediaDir)))

	srv.handler = srv.withRequestContext(corsPolicy(cfg.Server.CORSOrigins).Handler(mux))
	return srv
}

func corsPolicy(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         600,
	})
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// Secondary analysis runs inside the request.
		WriteTimeout: s.cfg.AnalysisTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// withRequestContext assigns a request id and writes one access log line per
// request.
func (s *apiServer) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := services.WithRequestID(r.Context(), requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logging.WithContext(ctx, s.logger).Log(ctx, level, "http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Path:        dep.Path,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Bind:         status.Bind,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: deps,
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Message: message})
}

// writeServiceError maps classified errors to HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String(logging.FieldEventType, "request_failed"),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, status, services.Reason(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
