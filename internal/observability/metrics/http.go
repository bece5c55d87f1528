package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchRequestsTotal *prometheus.CounterVec
	searchCacheEvents   *prometheus.CounterVec
	searchTimeoutsTotal *prometheus.CounterVec
	searchResults       *prometheus.HistogramVec
	searchDuration      *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lex",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total completed similarity searches.",
		},
		[]string{"service"},
	)
	searchCacheEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "search",
			Name:      "cache_events_total",
			Help:      "Search cache lookups by result.",
		},
		[]string{"service", "result"},
	)
	searchTimeoutsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lex",
			Subsystem: "search",
			Name:      "timeouts_total",
			Help:      "Searches abandoned at the deadline.",
		},
		[]string{"service"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lex",
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of results per completed search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lex",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Similarity search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchRequestsTotal,
		searchCacheEvents,
		searchTimeoutsTotal,
		searchResults,
		searchDuration,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchRequestsTotal: searchRequestsTotal,
		searchCacheEvents:   searchCacheEvents,
		searchTimeoutsTotal: searchTimeoutsTotal,
		searchResults:       searchResults,
		searchDuration:      searchDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// SearchObserver binds the per-search counters to one service label so the
// search engine records observations without knowing about Prometheus labels.
func (m *HTTPServerMetrics) SearchObserver(service string) *SearchObserver {
	return &SearchObserver{metrics: m, service: service}
}

type SearchObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func (o *SearchObserver) CacheEvent(result string) {
	if o == nil {
		return
	}
	o.metrics.searchCacheEvents.WithLabelValues(o.service, result).Inc()
}

func (o *SearchObserver) Timeout() {
	if o == nil {
		return
	}
	o.metrics.searchTimeoutsTotal.WithLabelValues(o.service).Inc()
}

func (o *SearchObserver) Completed(resultCount int, duration time.Duration) {
	if o == nil {
		return
	}
	o.metrics.searchRequestsTotal.WithLabelValues(o.service).Inc()
	o.metrics.searchResults.WithLabelValues(o.service).Observe(float64(resultCount))
	o.metrics.searchDuration.WithLabelValues(o.service).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
