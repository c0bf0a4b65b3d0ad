package engine

import (
	"context"

	"github.com/swarmguard/swarmguard/pkg/audit"
)

// AuditAdapter implements AuditRecorder on top of pkg/audit.AuditLogger,
// translating a dispatched (service, Scenario, Outcome) triple into the
// recovery-category events events.go declares.
type AuditAdapter struct {
	logger *audit.AuditLogger
}

// NewAuditAdapter wraps logger as an engine.AuditRecorder. A nil logger is
// replaced with the process-wide default (audit.GetGlobalAuditLogger).
func NewAuditAdapter(logger *audit.AuditLogger) *AuditAdapter {
	if logger == nil {
		logger = audit.GetGlobalAuditLogger()
	}
	return &AuditAdapter{logger: logger}
}

// RecordAction implements AuditRecorder.
func (a *AuditAdapter) RecordAction(ctx context.Context, service string, scenario Scenario, outcome Outcome) {
	switch scenario {
	case ScenarioMigration:
		a.logger.LogMigration(ctx, service, outcomeFromNode(outcome), outcome.NewNode, string(outcome.Kind), outcome.Duration)
	case ScenarioScaleUp:
		a.logger.LogScaleUp(ctx, service, outcome.BeforeReplicas, outcome.AfterReplicas, string(outcome.Kind))
	case ScenarioScaleDown:
		a.logger.LogScaleDown(ctx, service, outcome.BeforeReplicas, outcome.AfterReplicas, string(outcome.Kind))
	}
}

// outcomeFromNode supplies the fromNode of a migration's audit entry. It
// returns ActualNode for a Stale outcome and "" for every other kind, since
// Outcome itself does not carry the alert's reported node (engine.go passes
// that to the HTTP layer directly, not through Outcome).
func outcomeFromNode(outcome Outcome) string {
	if outcome.Kind == OutcomeStale {
		return outcome.ActualNode
	}
	return ""
}
