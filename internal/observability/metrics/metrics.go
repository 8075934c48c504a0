package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the counters tracked by the provisioning engine.
type Metrics struct {
	CheckoutsStarted   *prometheus.CounterVec
	WebhooksProcessed  *prometheus.CounterVec
	WebhooksDuplicate  prometheus.Counter
	WebhooksFailed     *prometheus.CounterVec
	SignupsProvisioned prometheus.Counter
	CompensationRuns   *prometheus.CounterVec
	RateLimitDenied    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckoutsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everafter_checkouts_started_total",
			Help: "Checkout sessions created, by theme.",
		}, []string{"theme"}),
		WebhooksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everafter_webhook_events_processed_total",
			Help: "Webhook events fully processed, by event type.",
		}, []string{"type"}),
		WebhooksDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "everafter_webhook_events_duplicate_total",
			Help: "Webhook deliveries rejected by the idempotency ledger.",
		}),
		WebhooksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everafter_webhook_events_failed_total",
			Help: "Webhook events whose dispatch failed, by event type.",
		}, []string{"type"}),
		SignupsProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "everafter_signups_provisioned_total",
			Help: "Signups fully provisioned (profile + wedding created).",
		}),
		CompensationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everafter_saga_compensations_total",
			Help: "Saga compensation attempts, by step and outcome.",
		}, []string{"step", "outcome"}),
		RateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everafter_rate_limit_denied_total",
			Help: "Requests rejected by the rate limiter, by prefix.",
		}, []string{"prefix"}),
	}

	reg.MustRegister(
		m.CheckoutsStarted,
		m.WebhooksProcessed,
		m.WebhooksDuplicate,
		m.WebhooksFailed,
		m.SignupsProvisioned,
		m.CompensationRuns,
		m.RateLimitDenied,
	)
	return m
}
