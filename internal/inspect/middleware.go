package inspect

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// httpMetrics are the inspector's request collectors.
//
// Metrics collected:
//   - atom_inspect_requests_total: requests by route, method and status
//   - atom_inspect_request_duration_seconds: request latency by route
//   - atom_inspect_watches: open watch connections
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	watches  prometheus.Gauge
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	factory := promauto.With(reg)

	return &httpMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atom",
			Subsystem: "inspect",
			Name:      "requests_total",
			Help:      "Total number of inspector requests",
		}, []string{"route", "method", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atom",
			Subsystem: "inspect",
			Name:      "request_duration_seconds",
			Help:      "Inspector request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		watches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "atom",
			Subsystem: "inspect",
			Name:      "watches",
			Help:      "Number of open watch connections",
		}),
	}
}

func (m *httpMetrics) watchOpened() {
	if m != nil {
		m.watches.Inc()
	}
}

func (m *httpMetrics) watchClosed() {
	if m != nil {
		m.watches.Dec()
	}
}

// instrument traces, counts and logs every request. Routes are labelled
// by their chi pattern so paths naming atoms do not multiply series.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, span := s.tracer.Start(r.Context(), "inspect "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		span.SetName("inspect " + r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			s.metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())
		}
		s.logger.Debug("inspect request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"duration", elapsed,
		)
	})
}
