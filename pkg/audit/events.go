// Package audit provides a structured, sink-pluggable audit trail for the
// recovery engine's action outcomes, adapted from the teacher's
// pkg/audit package: the same AuditEvent/AuditLogger/EventSink mechanics,
// re-targeted from node/nodegroup lifecycle events to SwarmGuard's three
// recovery scenarios (spec.md §4.2) plus the transport circuit breaker
// (internal/transport) and the router's lease/health observability.
package audit

// EventType represents the type of audit event
type EventType string

const (
	// Recovery action events (spec.md §4.2)
	EventMigrationDispatched  EventType = "recovery.migration_dispatched"
	EventMigrationSucceeded   EventType = "recovery.migration_succeeded"
	EventMigrationRolledBack  EventType = "recovery.migration_rolled_back"
	EventScaleUpDispatched    EventType = "recovery.scale_up_dispatched"
	EventScaleUpSucceeded     EventType = "recovery.scale_up_succeeded"
	EventScaleUpRefused       EventType = "recovery.scale_up_refused"
	EventScaleDownDispatched  EventType = "recovery.scale_down_dispatched"
	EventScaleDownSucceeded   EventType = "recovery.scale_down_succeeded"
	EventActionTransientError EventType = "recovery.action_transient_error"

	// Alert intake events
	EventAlertDebounced     EventType = "alert.debounced"
	EventAlertCooldownHit   EventType = "alert.cooldown_hit"
	EventAlertStaleIgnored  EventType = "alert.stale_ignored"

	// Resilience events
	EventCircuitBreakerOpened EventType = "resilience.circuit_breaker_opened"
	EventCircuitBreakerClosed EventType = "resilience.circuit_breaker_closed"

	// Router events
	EventReplicaUnhealthy EventType = "router.replica_unhealthy"
	EventNoHealthyReplica EventType = "router.no_healthy_replica"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// EventCategory groups related event types
type EventCategory string

const (
	CategoryRecovery   EventCategory = "recovery"
	CategoryAlert      EventCategory = "alert"
	CategoryResilience EventCategory = "resilience"
	CategoryRouter     EventCategory = "router"
	CategorySystem     EventCategory = "system"
)

// GetCategory returns the category for an event type
func GetCategory(eventType EventType) EventCategory {
	switch eventType {
	case EventMigrationDispatched, EventMigrationSucceeded, EventMigrationRolledBack,
		EventScaleUpDispatched, EventScaleUpSucceeded, EventScaleUpRefused,
		EventScaleDownDispatched, EventScaleDownSucceeded, EventActionTransientError:
		return CategoryRecovery
	case EventAlertDebounced, EventAlertCooldownHit, EventAlertStaleIgnored:
		return CategoryAlert
	case EventCircuitBreakerOpened, EventCircuitBreakerClosed:
		return CategoryResilience
	case EventReplicaUnhealthy, EventNoHealthyReplica:
		return CategoryRouter
	default:
		return CategorySystem
	}
}

// GetSeverity returns the default severity for an event type
func GetSeverity(eventType EventType) EventSeverity {
	switch eventType {
	// Critical events
	case EventMigrationRolledBack, EventNoHealthyReplica:
		return SeverityCritical

	// Error events
	case EventActionTransientError:
		return SeverityError

	// Warning events
	case EventScaleUpRefused, EventCircuitBreakerOpened, EventReplicaUnhealthy:
		return SeverityWarning

	// Info events (default)
	default:
		return SeverityInfo
	}
}
