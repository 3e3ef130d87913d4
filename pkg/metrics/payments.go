package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for payment flows and webhook reconciliation.
type PaymentMetrics struct {
	webhookEvents  *prometheus.CounterVec
	intentsCreated *prometheus.CounterVec
	stripeDuration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events",
		Help: "Stripe webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	intentsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_created",
		Help: "Payment intents created by payment method.",
	}, []string{"payment_method"})
	stripeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stripe_call_duration_seconds",
		Help:    "Duration of outbound Stripe API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(webhookEvents, intentsCreated, stripeDuration)
	return &PaymentMetrics{
		webhookEvents:  webhookEvents,
		intentsCreated: intentsCreated,
		stripeDuration: stripeDuration,
	}
}

// IncWebhookEvent increments the webhook counter for the event type/outcome pair.
func (p *PaymentMetrics) IncWebhookEvent(eventType, outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncIntentCreated increments the created-intent counter for the payment method.
func (p *PaymentMetrics) IncIntentCreated(method string) {
	if p == nil || p.intentsCreated == nil {
		return
	}
	p.intentsCreated.WithLabelValues(normalizeLabel(method)).Inc()
}

// ObserveStripeCall records the duration of the named Stripe operation.
func (p *PaymentMetrics) ObserveStripeCall(operation string, duration time.Duration) {
	if p == nil || p.stripeDuration == nil {
		return
	}
	p.stripeDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
