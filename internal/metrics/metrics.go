// Package metrics declares the Prometheus vectors exported by the agent,
// engine, and router binaries. Semantic helpers live in recorder.go.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace is the metrics namespace shared by all three binaries.
const Namespace = "swarmguard"

var (
	// --- agent metrics ---

	// SamplesCollectedTotal counts completed poll ticks.
	SamplesCollectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "agent_samples_collected_total",
			Help:      "Total number of sampling ticks completed by the agent",
		},
		[]string{"node"},
	)

	// PollDuration tracks how long one sampling tick took.
	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "agent_poll_duration_seconds",
			Help:      "Time taken to complete one sampling tick",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"node"},
	)

	// PollOverrunTotal counts ticks whose duration exceeded poll_interval.
	PollOverrunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "agent_poll_overrun_total",
			Help:      "Total number of sampling ticks that exceeded the configured poll interval",
		},
		[]string{"node"},
	)

	// AlertsEmittedTotal counts alerts the classifier fired, by scenario.
	AlertsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "agent_alerts_emitted_total",
			Help:      "Total number of classification alerts emitted",
		},
		[]string{"node", "scenario"},
	)

	// AlertSendFailuresTotal counts alert POSTs that failed after retry.
	AlertSendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "agent_alert_send_failures_total",
			Help:      "Total number of alert deliveries dropped after exhausting retries",
		},
		[]string{"node"},
	)

	// --- engine metrics ---

	// AlertsReceivedTotal counts alerts the engine accepted for evaluation, by resulting status.
	AlertsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "engine_alerts_received_total",
			Help:      "Total number of alerts received by the recovery engine",
		},
		[]string{"scenario", "status"},
	)

	// ActionsDispatchedTotal counts actions the dispatcher attempted.
	ActionsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "engine_actions_dispatched_total",
			Help:      "Total number of recovery actions dispatched",
		},
		[]string{"action"},
	)

	// ActionOutcomesTotal counts the tagged outcome variant of every finished action.
	ActionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "engine_action_outcomes_total",
			Help:      "Total number of recovery actions by terminal outcome",
		},
		[]string{"action", "outcome"},
	)

	// ActionDuration tracks the wall-clock duration of an action (MTTR for migration).
	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "engine_action_duration_seconds",
			Help:      "Wall-clock duration of a recovery action, from dispatch to terminal outcome",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"action"},
	)

	// ActiveCooldowns reports the current number of services under an active cooldown.
	ActiveCooldowns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "engine_active_cooldowns",
			Help:      "Current number of services with an active cooldown entry",
		},
	)

	// BreachCounterGauge reports the current debounce counter per container.
	BreachCounterGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "engine_breach_counter",
			Help:      "Current consecutive-breach counter for a container",
		},
		[]string{"container"},
	)

	// ZeroDowntimeConfirmedTotal counts migrations where both tasks were observed
	// simultaneously running during OBSERVE.
	ZeroDowntimeConfirmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "engine_migration_zero_downtime_confirmed_total",
			Help:      "Total number of migrations where old and new tasks were observed running simultaneously",
		},
	)

	// --- router metrics ---

	// RequestsTotal counts proxied requests by outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "router_requests_total",
			Help:      "Total number of requests handled by the router",
		},
		[]string{"outcome"},
	)

	// SelectionsTotal counts replica selections by algorithm.
	SelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "router_selections_total",
			Help:      "Total number of replica selections made, by algorithm",
		},
		[]string{"algorithm"},
	)

	// HealthyReplicas reports the current size of the healthy working set.
	HealthyReplicas = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "router_healthy_replicas",
			Help:      "Current number of healthy replicas in the selector working set",
		},
	)

	// ActiveLeases reports the current total number of unexpired leases.
	ActiveLeases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "router_active_leases",
			Help:      "Current total number of unexpired leases across all replicas",
		},
	)

	// LeasesExpiredTotal counts leases reclaimed by the cleanup pass rather
	// than released on response.
	LeasesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "router_leases_expired_total",
			Help:      "Total number of leases reclaimed by the cleanup pass after expiry",
		},
	)

	// --- audit metrics (pkg/audit) ---

	// AuditEventsTotal counts every audit event logged, by type/category/severity.
	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "audit_events_total",
			Help:      "Total number of audit events logged",
		},
		[]string{"eventType", "category", "severity"},
	)
)

// Register registers all vectors above with reg. Production binaries call
// this with prometheus.DefaultRegisterer; tests use a scratch registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SamplesCollectedTotal,
		PollDuration,
		PollOverrunTotal,
		AlertsEmittedTotal,
		AlertSendFailuresTotal,
		AlertsReceivedTotal,
		ActionsDispatchedTotal,
		ActionOutcomesTotal,
		ActionDuration,
		ActiveCooldowns,
		BreachCounterGauge,
		ZeroDowntimeConfirmedTotal,
		RequestsTotal,
		SelectionsTotal,
		HealthyReplicas,
		ActiveLeases,
		LeasesExpiredTotal,
		AuditEventsTotal,
	)
}
