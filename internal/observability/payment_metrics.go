// Package observability hangs Prometheus counters off the event bus so
// payment outcomes are measurable without touching the payment path.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/metrocheck/crb-service/internal/core/events"
)

var (
	paymentsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crb_payments_completed_total",
			Help: "Payments that reached the completed state, by source.",
		},
		[]string{"source"},
	)

	paymentsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crb_payments_failed_total",
			Help: "Payments that reached the failed state, by source.",
		},
		[]string{"source"},
	)

	accessGrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crb_access_grants_total",
			Help: "Access grants issued, by package tier.",
		},
		[]string{"tier"},
	)
)

// RegisterEventHandlers subscribes the counters to payment lifecycle
// events.
func RegisterEventHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePaymentCompleted, func(ctx context.Context, event events.Event) error {
		if e, ok := event.(*events.PaymentCompletedEvent); ok {
			paymentsCompletedTotal.WithLabelValues(e.Source).Inc()
		}
		return nil
	})

	bus.Subscribe(events.EventTypePaymentFailed, func(ctx context.Context, event events.Event) error {
		if e, ok := event.(*events.PaymentFailedEvent); ok {
			paymentsFailedTotal.WithLabelValues(e.Source).Inc()
		}
		return nil
	})

	bus.Subscribe(events.EventTypeAccessGranted, func(ctx context.Context, event events.Event) error {
		if e, ok := event.(*events.AccessGrantedEvent); ok {
			accessGrantsTotal.WithLabelValues(e.PackageTier).Inc()
		}
		return nil
	})
}
