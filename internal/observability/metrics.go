package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's prometheus instruments. One instance is shared
// through fx; label cardinality is bounded (outcomes and kinds are closed
// enums).
type Metrics struct {
	Registry *prometheus.Registry

	ChargesTotal           *prometheus.CounterVec
	InstallmentAttempts    *prometheus.CounterVec
	NotificationsTotal     *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
	RunDuration            prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ChargesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duesflow",
			Name:      "charges_total",
			Help:      "Charge executions by outcome.",
		}, []string{"outcome"}),
		InstallmentAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duesflow",
			Name:      "installment_attempts_total",
			Help:      "Installment charge attempts by result.",
		}, []string{"result"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duesflow",
			Name:      "notifications_total",
			Help:      "Notification sends by kind and status.",
		}, []string{"kind", "status"}),
		GatewayRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "duesflow",
			Name:      "gateway_request_seconds",
			Help:      "Payment gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "duesflow",
			Name:      "payment_run_seconds",
			Help:      "Duration of full run-payments passes.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}

	reg.MustRegister(
		m.ChargesTotal,
		m.InstallmentAttempts,
		m.NotificationsTotal,
		m.GatewayRequestDuration,
		m.RunDuration,
	)

	return m
}

// Gatherer exposes the engine instruments together with the default registry,
// which carries the Go runtime collectors and the gorm plugin metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{prometheus.DefaultGatherer, m.Registry}
}
