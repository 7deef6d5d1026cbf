package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts requests and observes latency per outcome.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farm_weather_requests_total",
			Help: "Weather requests by outcome and HTTP status.",
		}, []string{"outcome", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farm_weather_request_duration_seconds",
			Help:    "Weather request latency by outcome.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) Emit(_ context.Context, ev Event) {
	m.requests.WithLabelValues(ev.Outcome, strconv.Itoa(ev.HTTPStatus)).Inc()
	m.duration.WithLabelValues(ev.Outcome).Observe((time.Duration(ev.LatencyMs) * time.Millisecond).Seconds())
}
