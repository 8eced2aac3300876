package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var latencyBuckets = []float64{5, 25, 100, 500, 1000, 5000}

// Middleware records request counts and latencies partitioned by status code,
// method and route pattern.
type Middleware struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMiddleware returns a prometheus middleware labelled with the service name.
func NewMiddleware(service string) *Middleware {
	return &Middleware{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Number of HTTP requests partitioned by status code, method and route.",
				ConstLabels: prometheus.Labels{"service": service},
			}, []string{"code", "method", "path"}),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_milliseconds",
				Help:        "Request duration partitioned by status code, method and route.",
				ConstLabels: prometheus.Labels{"service": service},
				Buckets:     latencyBuckets,
			}, []string{"code", "method", "path"}),
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// the route pattern keeps the cardinality bounded, raw paths do not
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return
		}

		code := strconv.Itoa(ww.Status())
		pattern := rctx.RoutePattern()
		m.requests.WithLabelValues(code, r.Method, pattern).Inc()
		m.latency.WithLabelValues(code, r.Method, pattern).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// MustRegisterDefault registers the collectors on the default registry. Call
// it once before serving promhttp.
func (m *Middleware) MustRegisterDefault() {
	prometheus.MustRegister(m.requests, m.latency)
}
