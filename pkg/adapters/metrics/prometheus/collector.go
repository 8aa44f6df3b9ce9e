package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	gatherer prometheus.Gatherer

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	predictionsServed prometheus.Counter
	up                prometheus.Gauge
	eventsPublished   *prometheus.CounterVec
}

// NewRegistry returns a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewCollector registers the predictor metrics on registerer and serves
// whatever gatherer collects from its Handler
func NewCollector(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	factory := promauto.With(registerer)

	return &Collector{
		gatherer: gatherer,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "predictor_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		),
		predictionsServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "predictor_predictions_served_total",
				Help: "Total number of predictions served",
			},
		),
		up: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "predictor_up",
				Help: "1 while the health monitor reports the service as live",
			},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predictor_events_published_total",
				Help: "Total number of events published, by topic and result",
			},
			[]string{"topic", "result"},
		),
	}
}

// IncPredictionsServed increments the count of served predictions
func (c *Collector) IncPredictionsServed() {
	c.predictionsServed.Inc()
}

// SetUp records whether the service is live
func (c *Collector) SetUp(up bool) {
	if up {
		c.up.Set(1)
		return
	}
	c.up.Set(0)
}

// RecordEventPublished counts a publish attempt on topic
func (c *Collector) RecordEventPublished(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.eventsPublished.WithLabelValues(topic, result).Inc()
}

// ObserveHTTPRequest records a finished HTTP request
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the exposition handler for the collector's gatherer
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
