package metrics

import "time"

// RecordPoll records one completed agent sampling tick.
func RecordPoll(node string, duration time.Duration, overran bool) {
	SamplesCollectedTotal.WithLabelValues(node).Inc()
	PollDuration.WithLabelValues(node).Observe(duration.Seconds())
	if overran {
		PollOverrunTotal.WithLabelValues(node).Inc()
	}
}

// RecordAlertEmitted records a classifier firing, by node and scenario.
func RecordAlertEmitted(node, scenario string) {
	AlertsEmittedTotal.WithLabelValues(node, scenario).Inc()
}

// RecordAlertSendFailure records an alert dropped after retry.
func RecordAlertSendFailure(node string) {
	AlertSendFailuresTotal.WithLabelValues(node).Inc()
}

// RecordAlertReceived records an inbound alert's resulting status.
func RecordAlertReceived(scenario, status string) {
	AlertsReceivedTotal.WithLabelValues(scenario, status).Inc()
}

// RecordActionDispatched records the start of a recovery action.
func RecordActionDispatched(action string) {
	ActionsDispatchedTotal.WithLabelValues(action).Inc()
}

// RecordActionOutcome records the terminal outcome of a recovery action.
func RecordActionOutcome(action, outcome string, duration time.Duration) {
	ActionOutcomesTotal.WithLabelValues(action, outcome).Inc()
	ActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordZeroDowntimeConfirmed records a migration OBSERVE phase that saw both
// tasks running simultaneously.
func RecordZeroDowntimeConfirmed() {
	ZeroDowntimeConfirmedTotal.Inc()
}

// SetActiveCooldowns sets the current count of services under cooldown.
func SetActiveCooldowns(n int) {
	ActiveCooldowns.Set(float64(n))
}

// SetBreachCounter sets the current debounce counter for a container.
func SetBreachCounter(container string, n int) {
	BreachCounterGauge.WithLabelValues(container).Set(float64(n))
}

// RecordRequest records a proxied router request by outcome (e.g. "200", "502", "503").
func RecordRequest(outcome string) {
	RequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordSelection records a replica selection by algorithm.
func RecordSelection(algorithm string) {
	SelectionsTotal.WithLabelValues(algorithm).Inc()
}

// SetHealthyReplicas sets the current healthy-set size.
func SetHealthyReplicas(n int) {
	HealthyReplicas.Set(float64(n))
}

// SetActiveLeases sets the current total lease count.
func SetActiveLeases(n int) {
	ActiveLeases.Set(float64(n))
}

// RecordLeaseExpired records a lease reclaimed by the cleanup pass.
func RecordLeaseExpired() {
	LeasesExpiredTotal.Inc()
}
