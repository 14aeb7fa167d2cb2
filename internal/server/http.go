package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/coffersTech/eventdeck/internal/pkg/security"
	"github.com/coffersTech/eventdeck/internal/registry"
)

// APIServer is the JSON boundary in front of the view registry.
type APIServer struct {
	store    *registry.Store
	views    *registry.Server
	verifier *security.Verifier // nil disables auth
	logger   *zap.Logger
	started  time.Time
	srv      *http.Server

	requestCount int64
}

// NewAPIServer creates the server. verifier may be nil.
func NewAPIServer(store *registry.Store, verifier *security.Verifier, logger *zap.Logger) *APIServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIServer{
		store:    store,
		views:    registry.NewServer(store, logger.Named("views")),
		verifier: verifier,
		logger:   logger,
		started:  time.Now(),
	}
}

// Handler builds the route table.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)

	// View routes (protected)
	mux.Handle("/api/views", s.AuthMiddleware(http.HandlerFunc(s.views.HandleViews)))
	mux.Handle("/api/views/", s.AuthMiddleware(http.HandlerFunc(s.views.HandleView)))

	return s.logRequests(mux)
}

// Start runs the HTTP server.
func (s *APIServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// AuthMiddleware checks for a valid token in the Authorization header or
// the token query parameter.
func (s *APIServer) AuthMiddleware(next http.Handler) http.Handler {
	if s.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="eventdeck"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}
		if err := s.verifier.Verify(token); err != nil {
			s.logger.Warn("Rejected token", zap.String("remote", r.RemoteAddr), zap.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="eventdeck"`)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *APIServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requestCount, 1)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type healthResponse struct {
	Status   string `json:"status"`
	Views    int    `json:"views"`
	Requests int64  `json:"requests"`
	Uptime   string `json:"uptime"`
}

// handleHealth reports liveness and basic counters.
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:   "ok",
		Views:    len(s.store.List()),
		Requests: atomic.LoadInt64(&s.requestCount),
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
	})
}
