// Package metrics defines the Prometheus metrics of the webhook pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_webhook_requests_total",
		Help: "Total number of webhook deliveries received, labelled by platform.",
	}, []string{"platform"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_verifications_total",
		Help: "Total number of signature verifications, labelled by platform and result.",
	}, []string{"platform", "result"})

	Challenges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_challenges_total",
		Help: "Total number of handshake requests, labelled by platform and result.",
	}, []string{"platform", "result"})

	EventsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_events_extracted_total",
		Help: "Total number of normalized events, labelled by platform and event type.",
	}, []string{"platform", "event_type"})

	HandlerInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgate_handler_invocations_total",
		Help: "Total number of event handler invocations, labelled by platform and outcome.",
	}, []string{"platform", "outcome"})

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hookgate_audit_failures_total",
		Help: "Total number of audit records that could not be written.",
	})

	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hookgate_processing_duration_ms",
		Help:    "End-to-end webhook processing latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"platform"})
)

// Result labels.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// OtherPlatform is the platform label of all the platforms that aren't
// known in advance, since their IDs come from unauthenticated URL paths.
const OtherPlatform = "other"
