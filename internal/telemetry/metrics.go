package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Resolutions counts rule-set loads by the source that won.
	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_resolutions_total",
			Help: "Rule set resolutions by source (remote or local)",
		},
		[]string{"source"},
	)
	// RemoteFallbacks counts remote fetches that fell back to local options.
	RemoteFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_remote_fallbacks_total",
			Help: "Remote config failures that triggered local fallback, by reason",
		},
		[]string{"reason"},
	)
	// Decisions counts emitted script decisions.
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_decisions_total",
			Help: "Emitted script decisions by placement and delivery",
		},
		[]string{"placement", "delivery"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, Resolutions, RemoteFallbacks, Decisions)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// chi fills the route pattern while routing, so read it afterwards.
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
