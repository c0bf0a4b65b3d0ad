package engine

import "time"

// OutcomeKind is the closed set of tagged variants a recovery action can
// terminate in (spec.md §9 REDESIGN FLAGS: "Tagged action outcomes replace
// ad-hoc dictionaries"). Every dispatcher call returns exactly one.
type OutcomeKind string

const (
	// OutcomeSuccess: Success{new_node, duration} — migration completed
	// onto a different node, or a scale request was applied.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeRolledBack: RolledBack{reason} — migration OBSERVE deadline
	// expired and the prior replica count was restored.
	OutcomeRolledBack OutcomeKind = "rolled_back"

	// OutcomeRefused: Refused{reason} — a resource bound (max/min replicas)
	// or a no-task condition prevented the action, not an error.
	OutcomeRefused OutcomeKind = "refused"

	// OutcomeStale: Stale{actual_node} — the alert no longer matches the
	// orchestrator's current placement.
	OutcomeStale OutcomeKind = "stale"

	// OutcomeTransientError: TransientError{detail} — the orchestrator call
	// failed in a way the caller may retry later.
	OutcomeTransientError OutcomeKind = "transient_error"
)

// Outcome is the tagged result of one dispatched action. Only the fields
// relevant to Kind are populated; it is the HTTP layer's job (spec.md §9)
// to serialize this to the wire response shape of spec.md §6.
type Outcome struct {
	Kind OutcomeKind

	// Success fields.
	NewNode                string
	Duration                time.Duration
	ZeroDowntimeConfirmed   bool
	BeforeReplicas          int
	AfterReplicas           int

	// RolledBack / Refused / TransientError fields.
	Reason string

	// Stale fields.
	ActualNode string
}

func success(newNode string, d time.Duration, zeroDowntime bool) Outcome {
	return Outcome{Kind: OutcomeSuccess, NewNode: newNode, Duration: d, ZeroDowntimeConfirmed: zeroDowntime}
}

func successScale(before, after int) Outcome {
	return Outcome{Kind: OutcomeSuccess, BeforeReplicas: before, AfterReplicas: after}
}

func rolledBack(reason string) Outcome {
	return Outcome{Kind: OutcomeRolledBack, Reason: reason}
}

func refused(reason string) Outcome {
	return Outcome{Kind: OutcomeRefused, Reason: reason}
}

func stale(actualNode string) Outcome {
	return Outcome{Kind: OutcomeStale, ActualNode: actualNode}
}

func transientError(detail string) Outcome {
	return Outcome{Kind: OutcomeTransientError, Reason: detail}
}
