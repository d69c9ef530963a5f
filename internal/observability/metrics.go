// Package observability exposes Prometheus metrics for the survey API.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service metrics. It satisfies the editor and terrain
// metrics recorder interfaces.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	EditorEvents      *prometheus.CounterVec
	Analyses          *prometheus.CounterVec
	AnalysisDurations prometheus.Histogram
	AnalysisSamples   prometheus.Histogram
	ElevationBatches  *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "survey_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "survey_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"}), "survey_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_editor_events_total",
		Help: "Editor events handled, labeled by event type and outcome.",
	}, []string{"type", "outcome"}), "survey_editor_events_total")
	if err != nil {
		return nil, err
	}

	analyses, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_terrain_analyses_total",
		Help: "Terrain analyses, labeled by outcome.",
	}, []string{"outcome"}), "survey_terrain_analyses_total")
	if err != nil {
		return nil, err
	}

	analysisDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "survey_terrain_analysis_duration_seconds",
		Help:    "Terrain analysis latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}), "survey_terrain_analysis_duration_seconds")
	if err != nil {
		return nil, err
	}

	analysisSamples, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "survey_terrain_analysis_samples",
		Help:    "Elevation samples per successful analysis.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}), "survey_terrain_analysis_samples")
	if err != nil {
		return nil, err
	}

	batches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "survey_elevation_batches_total",
		Help: "Elevation provider batch calls, labeled by outcome.",
	}, []string{"outcome"}), "survey_elevation_batches_total")
	if err != nil {
		return nil, err
	}

	sessions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "survey_active_sessions",
		Help: "Editor sessions currently held in memory.",
	}), "survey_active_sessions")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		HTTPRequests:      requests,
		HTTPDurations:     durations,
		EditorEvents:      events,
		Analyses:          analyses,
		AnalysisDurations: analysisDurations,
		AnalysisSamples:   analysisSamples,
		ElevationBatches:  batches,
		ActiveSessions:    sessions,
	}, nil
}

// Middleware records request counts and durations per matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		if c == nil {
			return
		}
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDurations.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) RecordEditorEvent(kind, outcome string) {
	if c == nil || c.EditorEvents == nil {
		return
	}
	c.EditorEvents.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordAnalysis(outcome string, duration time.Duration, samples int) {
	if c == nil {
		return
	}
	c.Analyses.WithLabelValues(outcome).Inc()
	c.AnalysisDurations.Observe(duration.Seconds())
	if outcome == "ok" {
		c.AnalysisSamples.Observe(float64(samples))
	}
}

func (c *Collector) RecordElevationBatch(outcome string, _ int) {
	if c == nil {
		return
	}
	c.ElevationBatches.WithLabelValues(outcome).Inc()
}

// SetActiveSessions satisfies the session registry's gauge hook.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil || c.ActiveSessions == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
