package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the fulfillment collectors.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeDuplicate = "duplicate"
	OutcomeOrphaned  = "orphaned"
	OutcomeNoLabel   = "no_label_url"
)

// Fulfillment records label purchase, carrier call and webhook ingestion metrics.
type Fulfillment struct {
	purchases     *prometheus.CounterVec
	pollAttempts  *prometheus.HistogramVec
	carrierCalls  *prometheus.HistogramVec
	webhookEvents *prometheus.CounterVec
}

// NewFulfillment registers the fulfillment collectors on the provided registerer.
func NewFulfillment(reg prometheus.Registerer) *Fulfillment {
	if reg == nil {
		return &Fulfillment{}
	}
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "label_purchases_total",
		Help: "Label purchase attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	pollAttempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "label_poll_attempts",
		Help:    "Transaction lookups needed before a label URL was available.",
		Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
	}, []string{"provider"})
	carrierCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrier_request_duration_seconds",
		Help:    "Duration of carrier API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhooks by source and outcome.",
	}, []string{"source", "outcome"})
	reg.MustRegister(purchases, pollAttempts, carrierCalls, webhookEvents)
	return &Fulfillment{
		purchases:     purchases,
		pollAttempts:  pollAttempts,
		carrierCalls:  carrierCalls,
		webhookEvents: webhookEvents,
	}
}

// IncPurchase counts one label purchase attempt.
func (f *Fulfillment) IncPurchase(provider, outcome string) {
	if f == nil || f.purchases == nil {
		return
	}
	f.purchases.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObservePollAttempts records how many lookups a purchase needed.
func (f *Fulfillment) ObservePollAttempts(provider string, attempts int) {
	if f == nil || f.pollAttempts == nil {
		return
	}
	f.pollAttempts.WithLabelValues(normalizeLabel(provider)).Observe(float64(attempts))
}

// ObserveCarrierCall records the duration of a carrier API call.
func (f *Fulfillment) ObserveCarrierCall(provider, operation string, err error, duration time.Duration) {
	if f == nil || f.carrierCalls == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	f.carrierCalls.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

// IncWebhook counts one inbound webhook.
func (f *Fulfillment) IncWebhook(source, outcome string) {
	if f == nil || f.webhookEvents == nil {
		return
	}
	f.webhookEvents.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
