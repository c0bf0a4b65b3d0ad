package orchestrator

// Task is one running instance (container) of a Service — the orchestrator's
// unit of placement. Grounded on spec.md §3's ContainerFact entity.
type Task struct {
	ID       string
	NodeName string
	State    string // e.g. "running", "pending", "shutdown"
}

// Service is a logical application with one or more interchangeable tasks
// (spec.md GLOSSARY).
type Service struct {
	Name                string
	DesiredReplicas      int
	PlacementConstraints []string
}

// UpdatePolicy controls how a rolling update is applied. The only
// contractually correct ordering for migration is start-first with
// parallelism 1 (spec.md §4.2, §9) — other historical variants
// (force-scale-then-trim, constraint-add-then-scale) are explicitly
// forbidden and are not implemented anywhere in this module.
type UpdatePolicy struct {
	Order       string // always "start-first" for migration
	Parallelism int
}

// ServiceUpdate is the mutation applied by UpdateService: a new placement
// constraint set, the update policy to apply it under, and a monotonically
// incremented force-update counter that guarantees task recreation even when
// the image is otherwise unchanged (spec.md §4.2 APPLY_ROLLING_UPDATE).
type ServiceUpdate struct {
	PlacementConstraints []string
	UpdatePolicy         UpdatePolicy
	ForceUpdate          uint64
}
