package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/depth-crawler/internal/crawler"
	"github.com/JakeFAU/depth-crawler/internal/dispatcher"
	"github.com/JakeFAU/depth-crawler/internal/metrics"
)

// CrawlStatus reports the crawl's live counters.
type CrawlStatus interface {
	Snapshot() crawler.Snapshot
}

// PoolStatus reports the worker pool's load.
type PoolStatus interface {
	Stats() dispatcher.Stats
}

// FrontierStatus reports how many addresses have been claimed. An error
// marks the server as not ready.
type FrontierStatus interface {
	Size(ctx context.Context) (int64, error)
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	Crawl    crawler.Snapshot `json:"crawl"`
	Pool     dispatcher.Stats `json:"pool"`
	Frontier frontierStatus   `json:"frontier"`
}

type frontierStatus struct {
	Claimed int64  `json:"claimed"`
	Error   string `json:"error,omitempty"`
}

// Server wires HTTP handlers to the running crawl.
type Server struct {
	router   chi.Router
	crawl    CrawlStatus
	pool     PoolStatus
	frontier FrontierStatus
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(crawl CrawlStatus, pool PoolStatus, frontier FrontierStatus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		crawl:    crawl,
		pool:     pool,
		frontier: frontier,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.status)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.frontier != nil {
		if _, err := s.frontier.Size(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "frontier unavailable: "+err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if s.crawl != nil {
		resp.Crawl = s.crawl.Snapshot()
	}
	if s.pool != nil {
		resp.Pool = s.pool.Stats()
	}
	if s.frontier != nil {
		n, err := s.frontier.Size(r.Context())
		resp.Frontier.Claimed = n
		if err != nil {
			resp.Frontier.Error = err.Error()
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
