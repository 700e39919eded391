package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-service-desk/internal/services"
)

var (
	// deliveries counts outbound attempts by kind (fanout|relay) and outcome.
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desk_delivery_attempts_total",
			Help: "Outbound delivery attempts by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// recipients records how many recipients one fan-out or relay addressed.
	recipients = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desk_delivery_recipients",
			Help:    "Attempts per delivery report.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"kind"},
	)

	sessionsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "desk_sessions_live",
		Help: "Sessions currently held in memory.",
	})

	sessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "desk_sessions_expired_total",
		Help: "Sessions removed by the idle sweeper.",
	})
)

func init() {
	prometheus.MustRegister(deliveries, recipients, sessionsLive, sessionsExpired)
}

// DeliveryMetrics is a services.DeliverySink that exports reports as
// Prometheus series and logs every failed attempt.
type DeliveryMetrics struct{}

// Record implements services.DeliverySink.
func (DeliveryMetrics) Record(ctx context.Context, r services.DeliveryReport) {
	ok := r.Delivered()
	failed := r.Failed()
	deliveries.WithLabelValues(r.Kind, "ok").Add(float64(ok))
	deliveries.WithLabelValues(r.Kind, "failed").Add(float64(len(failed)))
	recipients.WithLabelValues(r.Kind).Observe(float64(len(r.Attempts)))

	log := zerolog.Ctx(ctx)
	for _, a := range failed {
		ev := log.Warn().Err(a.Err).Str("kind", r.Kind).Str("subject", r.Subject).Int64("recipient", a.Recipient)
		if a.MessageID != 0 {
			ev = ev.Int64("message_id", a.MessageID)
		}
		ev.Msg("delivery attempt failed")
	}
	log.Debug().Str("kind", r.Kind).Str("subject", r.Subject).Int("delivered", ok).Int("failed", len(failed)).Msg("delivery report")
}

// ObserveSessions publishes the live session count and the number the last
// sweep removed.
func ObserveSessions(live, removed int) {
	sessionsLive.Set(float64(live))
	if removed > 0 {
		sessionsExpired.Add(float64(removed))
	}
}
