// Package orchestrator defines the narrow collaborator interface spec.md §6
// names ("list services, get service by name, list tasks for a service
// filtered by desired-state, get node by id, update service..., scale
// service"), grounded on the narrow-capability-interface pattern of
// pkg/vpsie/client/interface.go: one interface, one concrete implementation,
// one compile-time assertion, one fake for tests.
package orchestrator

import "context"

// Client is the full set of orchestrator capabilities the recovery engine
// and router require. Returned errors use *apierr.APIError; a 404-equivalent
// surfaces through apierr.IsNotFound, matching spec.md §7's "domain absence"
// error kind.
type Client interface {
	// GetServiceNode returns the node currently hosting containerID for
	// serviceName, used by the engine's stale-alert rejection (spec.md §4.2).
	GetServiceNode(ctx context.Context, serviceName, containerID string) (string, error)

	// ListReplicas returns the service's current tasks with their State
	// ("running", "pending", ...); callers that need running tasks only
	// filter on State. Used by discovery (router) and by the scale-down
	// supervisor and migrator (engine).
	ListReplicas(ctx context.Context, serviceName string) ([]Task, error)

	// GetService returns the service's current desired-replica count and
	// placement constraints.
	GetService(ctx context.Context, serviceName string) (*Service, error)

	// ListServices returns every service the orchestrator currently manages,
	// used by the engine's scale-down supervisor to enumerate candidates
	// (spec.md §6 "list services"; SPEC_FULL.md §9 resolution of the
	// get_autoscaling_services open question).
	ListServices(ctx context.Context) ([]Service, error)

	// UpdateService applies a rolling update — the migrator's only write path.
	UpdateService(ctx context.Context, serviceName string, update ServiceUpdate) error

	// ScaleService adjusts DesiredReplicas by delta and returns the
	// before/after counts.
	ScaleService(ctx context.Context, serviceName string, delta int) (before, after int, err error)
}
