package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records payment lifecycle activity.
type PaymentMetrics struct {
	transitions     *prometheus.CounterVec
	webhookOutcomes *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Applied payment status transitions by target status.",
	}, []string{"status"})
	webhookOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_outcomes_total",
		Help: "Gateway webhook notifications by processing outcome.",
	}, []string{"outcome"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Duration of outbound gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(transitions, webhookOutcomes, gatewayDuration)
	return &PaymentMetrics{
		transitions:     transitions,
		webhookOutcomes: webhookOutcomes,
		gatewayDuration: gatewayDuration,
	}
}

// IncTransition increments the transition counter for the target status.
func (p *PaymentMetrics) IncTransition(status string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncWebhookOutcome increments the webhook counter for the given outcome.
func (p *PaymentMetrics) IncWebhookOutcome(outcome string) {
	if p == nil || p.webhookOutcomes == nil {
		return
	}
	p.webhookOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGatewayDuration records the duration for the named gateway call.
func (p *PaymentMetrics) ObserveGatewayDuration(operation string, duration time.Duration) {
	if p == nil || p.gatewayDuration == nil {
		return
	}
	p.gatewayDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
