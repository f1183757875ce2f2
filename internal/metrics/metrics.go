// Package metrics exposes Prometheus instruments for the webhook pipeline.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "klaus_webhook"

type Metrics struct {
	webhookEvents      *prometheus.CounterVec
	upstreamRequests   *prometheus.CounterVec
	tokenRefreshes     *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Webhook events processed, by terminal outcome.",
		}, []string{"outcome"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strava",
			Name:      "requests_total",
			Help:      "Requests sent to the Strava API, by operation and status code.",
		}, []string{"op", "code"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strava",
			Name:      "token_refreshes_total",
			Help:      "OAuth refresh exchanges, by result.",
		}, []string{"result"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gemini",
			Name:      "generation_duration_seconds",
			Help:      "Latency of language model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"result"}),
	}
	reg.MustRegister(m.webhookEvents, m.upstreamRequests, m.tokenRefreshes, m.generationDuration)
	return m
}

func (m *Metrics) ObserveEvent(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records one Strava request. code 0 means transport failure.
func (m *Metrics) ObserveUpstream(op string, code int) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(op, strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObserveTokenRefresh(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.tokenRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGeneration(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.generationDuration.WithLabelValues(result).Observe(d.Seconds())
}
