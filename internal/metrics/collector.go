// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records all councilflow Prometheus metrics. It
// satisfies council.Metrics so the pipeline can report stage progress without
// depending on this package.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Deliberation metrics
	stageDuration     *prometheus.HistogramVec
	stageTotal        *prometheus.CounterVec
	memberCallsTotal  *prometheus.CounterVec
	memberCallSeconds *prometheus.HistogramVec
	parseFallbacks    *prometheus.CounterVec
	parseEmpty        *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deliberation_stage_duration_seconds",
			Help:      "Duration of each deliberation stage in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	c.stageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliberation_stages_total",
			Help:      "Total number of completed deliberation stages",
		},
		[]string{"stage", "status"},
	)

	c.memberCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "member_calls_total",
			Help:      "Total number of council member calls",
		},
		[]string{"member", "status"},
	)

	c.memberCallSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "member_call_duration_seconds",
			Help:      "Council member call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"member"},
	)

	c.parseFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_parse_fallbacks_total",
			Help:      "Total number of rankings recovered by fallback parsing",
		},
		[]string{"evaluator"},
	)

	c.parseEmpty = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_parse_empty_total",
			Help:      "Total number of evaluations that yielded no ranking",
		},
		[]string{"evaluator"},
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStage records the outcome of one deliberation stage.
func (c *Collector) ObserveStage(stage string, duration time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	c.stageTotal.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveMemberCall records one upstream model call. An empty code means the
// call succeeded; otherwise code is the llm error code.
func (c *Collector) ObserveMemberCall(member string, duration time.Duration, code string) {
	status := "ok"
	if code != "" {
		status = code
	}
	c.memberCallsTotal.WithLabelValues(member, status).Inc()
	c.memberCallSeconds.WithLabelValues(member).Observe(duration.Seconds())
}

// IncParseFallback counts a ranking recovered by mention-order fallback.
func (c *Collector) IncParseFallback(evaluator string) {
	c.parseFallbacks.WithLabelValues(evaluator).Inc()
}

// IncParseEmpty counts an evaluation with no recoverable ranking.
func (c *Collector) IncParseEmpty(evaluator string) {
	c.parseEmpty.WithLabelValues(evaluator).Inc()
}

// RecordCacheHit counts a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss counts a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// statusClass buckets HTTP status codes to keep label cardinality down.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
