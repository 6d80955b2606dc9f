package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NudgesSent tracks delivered notifications by checkpoint/reminder type
	NudgesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_service_sent_total",
			Help: "Total number of nudges delivered to the push provider",
		},
		[]string{"type", "status"},
	)

	// SendsSuppressed tracks normal non-sends (owner gate, device lock, preconditions)
	SendsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_service_suppressed_total",
			Help: "Total number of sends suppressed before reaching the provider",
		},
		[]string{"type", "reason"},
	)

	// DeliveryDuration tracks provider delivery duration
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nudge_service_delivery_duration_seconds",
			Help:    "Push provider delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// LockConflicts tracks device slot claims lost to an earlier winner
	LockConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_service_lock_conflicts_total",
			Help: "Total number of device slot claims that found the slot already taken",
		},
	)

	// ComposeFallbacks tracks generative failures served by deterministic fallbacks
	ComposeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_service_compose_fallbacks_total",
			Help: "Total number of compositions that fell back to the deterministic body",
		},
		[]string{"checkpoint"},
	)

	// SchedulerMisfires tracks due jobs coalesced or skipped on recovery
	SchedulerMisfires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nudge_service_scheduler_misfires_total",
			Help: "Total number of jobs that missed their trigger window",
		},
		[]string{"outcome"}, // coalesced, skipped
	)

	// ActiveCronJobs tracks currently registered recurring jobs
	ActiveCronJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nudge_service_active_cron_jobs",
			Help: "Number of recurring checkpoint jobs currently registered",
		},
	)

	// TokensCleared tracks self-healing token invalidations
	TokensCleared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_service_tokens_cleared_total",
			Help: "Total number of stored device tokens cleared after provider rejection",
		},
	)

	// RateLimitExceeded tracks API rate limit violations
	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nudge_service_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
	)
)
