package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the download service.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	selectionsTotal *prometheus.CounterVec
	downloadsTotal  prometheus.Counter
	mergesTotal     prometheus.Counter
	errorsTotal     prometheus.Counter
	cacheHitsTotal  prometheus.Counter
	cacheSize       prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_requests_total",
		Help: "Total number of HTTP requests received",
	})
	selectionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediafetch_selections_total",
		Help: "Total number of selection plans produced, by strategy",
	}, []string{"strategy"})
	downloadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_downloads_total",
		Help: "Total number of completed stream downloads",
	})
	mergesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_merges_total",
		Help: "Total number of successful merge operations",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	cacheHitsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mediafetch_cache_hits_total",
		Help: "Total number of analysis cache hits",
	})
	cacheSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mediafetch_cache_entries",
		Help: "Number of live entries in the analysis cache",
	})

	registry.MustRegister(
		requestsTotal,
		selectionsTotal,
		downloadsTotal,
		mergesTotal,
		errorsTotal,
		cacheHitsTotal,
		cacheSize,
	)

	return &Metrics{
		registry:        registry,
		requestsTotal:   requestsTotal,
		selectionsTotal: selectionsTotal,
		downloadsTotal:  downloadsTotal,
		mergesTotal:     mergesTotal,
		errorsTotal:     errorsTotal,
		cacheHitsTotal:  cacheHitsTotal,
		cacheSize:       cacheSize,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncSelections increments the selection counter for the given strategy label.
func (m *Metrics) IncSelections(strategy string) {
	m.selectionsTotal.WithLabelValues(strategy).Inc()
}

// IncDownloads increments the completed downloads counter.
func (m *Metrics) IncDownloads() {
	m.downloadsTotal.Inc()
}

// IncMerges increments the successful merges counter.
func (m *Metrics) IncMerges() {
	m.mergesTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncCacheHits increments the analysis cache hit counter.
func (m *Metrics) IncCacheHits() {
	m.cacheHitsTotal.Inc()
}

// SetCacheSize sets the analysis cache size gauge.
func (m *Metrics) SetCacheSize(n int) {
	m.cacheSize.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. cache size).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
