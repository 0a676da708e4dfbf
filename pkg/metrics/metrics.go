package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records magic-link sign-in attempts by result (issued|success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introhub_auth_attempts_total",
			Help: "Total number of magic-link authentication attempts",
		},
		[]string{"result"},
	)

	// WorkflowTransitions counts state changes per workflow (connection|referral|introduction).
	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introhub_workflow_transitions_total",
			Help: "Total number of workflow state transitions",
		},
		[]string{"workflow", "status"},
	)

	// EmailDeliveries counts best-effort email deliveries by template and result (sent|failed|skipped).
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introhub_email_deliveries_total",
			Help: "Total number of transactional email deliveries",
		},
		[]string{"template", "result"},
	)

	// NotificationsCreated counts in-app notifications by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introhub_notifications_created_total",
			Help: "Total number of in-app notifications written",
		},
		[]string{"type"},
	)

	// RealtimeSubscribers tracks open notification stream connections.
	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "introhub_realtime_subscribers",
			Help: "Number of connected notification stream subscribers",
		},
	)

	// MaintenanceRuns counts background cleanup executions by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introhub_maintenance_runs_total",
			Help: "Total number of maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "introhub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
