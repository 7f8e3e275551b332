// Package metrics exposes pipeline counters for Prometheus.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobradar"

// Collector owns a private registry so several instances can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	postingsFetched  *prometheus.CounterVec
	postingsInserted *prometheus.CounterVec
	postingsDropped  *prometheus.CounterVec
	scrapeRuns       *prometheus.CounterVec
	scored           *prometheus.CounterVec
	aiCalls          *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New(version string) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.postingsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "postings_fetched_total",
		Help:      "Postings returned by producers before filtering",
	}, []string{"source", "query_group"})

	c.postingsInserted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "postings_inserted_total",
		Help:      "Postings stored for the first time",
	}, []string{"source"})

	c.postingsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "postings_dropped_total",
		Help:      "Postings removed by a filtering step",
	}, []string{"step"})

	c.scrapeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scrape_runs_total",
		Help:      "Producer runs by final status",
	}, []string{"source", "status"})

	c.scored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "postings_scored_total",
		Help:      "Scoring attempts by outcome",
	}, []string{"result"}) // "ok", "failed"

	c.aiCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_calls_total",
		Help:      "AI scorer invocations and gate skips",
	}, []string{"result"}) // "ok", "error", "skipped"

	c.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification outcomes per channel",
	}, []string{"channel", "status"})

	c.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	c.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version"})
	info.WithLabelValues(version).Set(1)

	c.registry.MustRegister(
		c.postingsFetched, c.postingsInserted, c.postingsDropped, c.scrapeRuns,
		c.scored, c.aiCalls, c.notifications, c.stageDuration,
		c.httpRequestsTotal, c.httpRequestDuration, info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the underlying registry for tests and custom exporters.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) Fetched(source, group string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.postingsFetched.WithLabelValues(source, group).Add(float64(n))
}

func (c *Collector) Inserted(source string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.postingsInserted.WithLabelValues(source).Add(float64(n))
}

func (c *Collector) Dropped(step string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.postingsDropped.WithLabelValues(step).Add(float64(n))
}

func (c *Collector) ScrapeRun(source, status string) {
	if c == nil {
		return
	}
	c.scrapeRuns.WithLabelValues(source, status).Inc()
}

func (c *Collector) Scored(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.scored.WithLabelValues(result).Inc()
}

func (c *Collector) AICall(result string) {
	if c == nil {
		return
	}
	c.aiCalls.WithLabelValues(result).Inc()
}

func (c *Collector) Notification(channel, status string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(channel, status).Inc()
}

// ObserveStage records how long a pipeline stage took since start.
func (c *Collector) ObserveStage(stage string, start time.Time) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Middleware returns gin middleware that collects HTTP metrics.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}

		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := ctx.Request.Method
		c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
