// Package web serves the object-management API over HTTP: board and object
// reads, the three write operations, the invalidation feed and metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rankboard/internal/metrics"
	"rankboard/internal/model"
	"rankboard/internal/mutate"
)

// Backend is the authoritative side of the API.
type Backend interface {
	mutate.API
	GetObject(ctx context.Context, id string) (model.Item, error)
}

type ServerConfig struct {
	Addr string
}

type Server struct {
	cfg     ServerConfig
	backend Backend
	feed    http.Handler
	metrics *metrics.Metrics
	log     *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithFeed mounts h (normally a *feed.Hub) at /api/feed.
func WithFeed(h http.Handler) Option {
	return func(s *Server) { s.feed = h }
}

func NewServer(cfg ServerConfig, backend Backend, opts ...Option) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if backend == nil {
		return nil, errors.New("web: backend is nil")
	}
	s := &Server{cfg: cfg, backend: backend, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/board", s.handleBoard)
		r.Get("/objects", s.handleObjects)
		r.Get("/objects/{id}", s.handleObject)
		r.Post("/objects/{id}/move", s.handleMove)
		r.Post("/objects/{id}/update", s.handleUpdate)
		r.Post("/classes/{class}/fields/{field}/options/reorder", s.handleReorderOptions)
		if s.feed != nil {
			r.Method(http.MethodGet, "/feed", s.feed)
		}
	})
	return r
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("serving object API", zap.String("addr", s.cfg.Addr))

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Debug("shutting down object API")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// observe logs and counts every request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		s.metrics.ObserveRequest(route, code)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", code),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
