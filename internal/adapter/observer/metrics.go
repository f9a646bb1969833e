package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const outcomeSuccess = "success"

type Metrics struct {
	Purchases   *prometheus.CounterVec
	TicketsSold prometheus.Counter
	DurationMS  *prometheus.HistogramVec
}

// NewMetrics registers the purchase collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticket",
		Name:      "purchases_total",
		Help:      "Purchase attempts by outcome.",
	}, []string{"outcome"})
	sold := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ticket",
		Name:      "tickets_sold_total",
		Help:      "Tickets issued by successful purchases.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ticket",
		Name:      "purchase_duration_ms",
		Help:      "Purchase latency in milliseconds, retries included.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"outcome"})

	reg.MustRegister(purchases, sold, duration)
	return &Metrics{Purchases: purchases, TicketsSold: sold, DurationMS: duration}
}

func (m *Metrics) ObservePurchase(_ context.Context, o domain.PurchaseOutcome) {
	outcome := outcomeSuccess
	if !o.Succeeded() {
		outcome = string(o.Kind)
	}

	m.Purchases.WithLabelValues(outcome).Inc()
	m.DurationMS.WithLabelValues(outcome).Observe(float64(o.Duration.Microseconds()) / 1000)
	if o.Succeeded() {
		m.TicketsSold.Add(float64(len(o.TicketIDs)))
	}
}
