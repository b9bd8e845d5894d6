// Package metrics exposes request accounting as Prometheus series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"copilot/internal/costtracker"
	"copilot/internal/models"
)

// Collector turns completed cost log entries into Prometheus metrics.
// It implements costtracker.Recorder.
type Collector struct {
	requestsTotal *prometheus.CounterVec
	costTotal     *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	tokensTotal   *prometheus.CounterVec
}

var _ costtracker.Recorder = (*Collector)(nil)

// NewCollector registers the copilot metric family on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_requests_total",
				Help: "Completed API requests by model, request type and outcome",
			},
			[]string{"model", "type", "status"},
		),
		costTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_request_cost_usd_total",
				Help: "Accumulated estimated request cost in USD",
			},
			[]string{"model"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "copilot_request_latency_seconds",
				Help:    "Request latency as measured by the cost ledger",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "copilot_tokens_total",
				Help: "Estimated tokens processed, split by direction",
			},
			[]string{"model", "direction"},
		),
	}
}

func (c *Collector) Record(entry models.CostLogEntry) {
	status := "success"
	if !entry.Success {
		status = "error"
	}
	c.requestsTotal.WithLabelValues(entry.Model, string(entry.RequestType), status).Inc()
	c.costTotal.WithLabelValues(entry.Model).Add(entry.TotalCost)
	c.latency.WithLabelValues(entry.Model).Observe(entry.LatencySeconds)
	c.tokensTotal.WithLabelValues(entry.Model, "input").Add(float64(entry.InputTokens))
	c.tokensTotal.WithLabelValues(entry.Model, "output").Add(float64(entry.OutputTokens))
}
