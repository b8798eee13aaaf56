package v1

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/garciabuilder/site-service/middleware"
)

// Sync outcome label values.
const (
	resultSynced = "synced"
	resultFailed = "failed"
	resultNoop   = "local_only"
)

var (
	syncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Name:      "profile_sync_attempts_total",
			Help:      "Remote upsert attempts for profile sections, by outcome",
		},
		[]string{"section", "result"},
	)

	pendingSections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: middleware.MetricsNamespace,
			Name:      "profile_sync_pending_sections",
			Help:      "Profile sections saved locally and not yet accepted by the remote store",
		},
	)

	connectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Name:      "connectivity_transitions_total",
			Help:      "Remote reachability changes observed by the connectivity monitor",
		},
		[]string{"state"},
	)

	rescanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: middleware.MetricsNamespace,
			Name:      "profile_sync_rescan_duration_seconds",
			Help:      "Duration of a pending-section rescan across all users",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	inquiriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Name:      "inquiries_total",
			Help:      "Form submissions by kind and outcome",
		},
		[]string{"kind", "result"},
	)

	mailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: middleware.MetricsNamespace,
			Name:      "mails_total",
			Help:      "Outgoing emails by kind and outcome",
		},
		[]string{"kind", "result"},
	)
)
