package perftracker

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors tracker observations into prometheus collectors so the
// same numbers the analytics endpoints serve are also scrapeable.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	queriesTotal    *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetrics registers the collectors on the given registerer. Tests pass a
// fresh registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attendance_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		queriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attendance_db_queries_total",
				Help: "Total number of database queries observed",
			},
			[]string{"operation", "collection", "status"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attendance_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 3},
			},
			[]string{"operation", "collection"},
		),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "attendance_cache_misses_total",
			Help: "Total number of cache misses",
		}),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(req APIRequest) {
	status := strconv.Itoa(req.StatusCode)
	m.requestsTotal.WithLabelValues(req.Method, req.Path, status).Inc()
	m.requestDuration.WithLabelValues(req.Method, req.Path).Observe(req.Duration.Seconds())
}

// ObserveQuery records one database query.
func (m *Metrics) ObserveQuery(q Query) {
	status := "ok"
	if q.Err != nil {
		status = "error"
	}
	m.queriesTotal.WithLabelValues(q.Operation, q.Collection, status).Inc()
	m.queryDuration.WithLabelValues(q.Operation, q.Collection).Observe(q.Duration.Seconds())
}

// CacheHit increments the cache hit counter. Wired as a callback into the
// tiered cache.
func (m *Metrics) CacheHit() {
	m.cacheHits.Inc()
}

// CacheMiss increments the cache miss counter.
func (m *Metrics) CacheMiss() {
	m.cacheMisses.Inc()
}
