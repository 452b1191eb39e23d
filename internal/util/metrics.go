package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created, by referral type",
	}, []string{"referral_type"})

	PaymentsInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total number of gateway payment initiations",
	})

	PaymentCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Gateway callbacks by mapped payment status and whether they changed state",
	}, []string{"status", "applied"})

	ChecksumFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_checksum_failures_total",
		Help: "Total number of gateway callbacks whose checksum did not verify",
	})

	PaymentCallbackLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_callback_latency_seconds",
		Help:    "Latency of gateway callback processing including notifications",
		Buckets: prometheus.DefBuckets,
	})

	OwnerDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "owner_decisions_total",
		Help: "Owner webhook decisions by outcome",
	}, []string{"outcome"})

	RefundTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_transitions_total",
		Help: "Refund sub-machine transitions by target stage",
	}, []string{"stage"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notification delivery attempts by recipient and result",
	}, []string{"recipient", "result"})

	NotificationRetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_retries_scheduled_total",
		Help: "Total number of notification retries handed to the retry queue",
	})

	PendingPaymentAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_payment_alerts_total",
		Help: "Total number of admin alerts for payments stuck in PENDING",
	})

	MonitorSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_sweep_duration_seconds",
		Help:    "Duration of the pending-payment sweep",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
