// Package inspect serves a running scenario over HTTP: current values,
// writes to state atoms, Prometheus metrics, and a websocket stream of
// changes per atom.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /atoms
//	GET  /atoms/{name}
//	PUT  /atoms/{name}
//	GET  /atoms/{name}/watch
package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/internal/scenario"
)

// Server is the inspector's HTTP handler.
type Server struct {
	world    *scenario.World
	router   chi.Router
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	metrics  *httpMetrics
	tracer   trace.Tracer
	upgrader websocket.Upgrader
	buffer   int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and connection logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer sets what /metrics exposes. Defaults to the global
// Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithRegisterer records request metrics into reg. Without it the
// inspector records none.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.metrics = newHTTPMetrics(reg)
	}
}

// WithTracer sets the tracer for request spans. Defaults to the global
// otel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithCheckOrigin restricts which origins may open a watch.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithWatchBuffer sets how many undelivered changes a watch may queue
// before the connection is dropped.
func WithWatchBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// NewServer returns an inspector for world.
func NewServer(world *scenario.World, opts ...Option) *Server {
	s := &Server{
		world:    world,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
		tracer:   otel.Tracer("github.com/vango-dev/atom/internal/inspect"),
		buffer:   64,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/atoms", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{name}", s.handleGet)
		r.Put("/{name}", s.handlePut)
		r.Get("/{name}/watch", s.handleWatch)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": s.world.Name(),
		"registry": s.world.Registry().ID().String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("inspect response not written", "error", err)
	}
}

// writeError answers with err's JSON form and a status derived from its
// code.
func writeError(w http.ResponseWriter, err error) {
	ae := errors.FromError(err, "A301")
	status := http.StatusInternalServerError
	switch ae.Code {
	case "A105", "A300":
		status = http.StatusNotFound
	case "A301":
		status = http.StatusBadRequest
	case "A107", "A302":
		status = http.StatusConflict
	}
	writeJSON(w, status, ae)
}
