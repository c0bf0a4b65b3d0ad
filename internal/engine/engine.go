// Package engine implements the recovery engine of spec.md §4.2: a
// serialized decision loop with per-service cooldowns, breach debouncing,
// stale-alert rejection, zero-downtime migration, and autonomous
// scale-down supervision.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/agent"
	"github.com/swarmguard/swarmguard/internal/apierr"
	"github.com/swarmguard/swarmguard/internal/logging"
	"github.com/swarmguard/swarmguard/internal/metrics"
	"github.com/swarmguard/swarmguard/internal/orchestrator"
)

// Config bundles the recovery engine's tunables, recognized from
// spec.md §6's configuration table.
type Config struct {
	RequiredBreaches        int
	CooldownMigration       time.Duration
	CooldownScaleUp         time.Duration
	CooldownScaleDown       time.Duration
	MaxReplicas             int
	MinReplicas             int
	MigrationHealthTimeout  time.Duration
	ScaleDownSupervisorTick time.Duration

	// CPUThreshold/MemoryThreshold are the same classification bounds the
	// agent uses (spec.md §4.1's CPU_HI/MEM_HI), reused here for the
	// scale-down supervisor's eligibility check (spec.md §4.2).
	CPUThreshold    float64
	MemoryThreshold float64
}

// AuditRecorder receives one entry per terminal action outcome, for an
// operator-facing trail independent of the metrics/logging streams
// (grounded on pkg/audit, see DESIGN.md).
type AuditRecorder interface {
	RecordAction(ctx context.Context, service string, scenario Scenario, outcome Outcome)
}

type noopAudit struct{}

func (noopAudit) RecordAction(context.Context, string, Scenario, Outcome) {}

// Engine is the single, central recovery engine (spec.md §4.2). All
// decisions are serialized through mu so that two alerts for the same
// service — or an alert racing the scale-down supervisor — never cause
// concurrent orchestrator updates (spec.md §5).
type Engine struct {
	cfg    Config
	orch   orchestrator.Client
	logger *zap.Logger
	audit  AuditRecorder

	mu                  sync.Mutex
	breachCounters      map[string]int
	cooldowns           map[string]cooldownEntry
	idleMarks           map[string]time.Time
	forceUpdateCounters map[string]uint64
}

// New builds an Engine.
func New(cfg Config, orch orchestrator.Client, logger *zap.Logger, audit AuditRecorder) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &Engine{
		cfg:                 cfg,
		orch:                orch,
		logger:              logger,
		audit:               audit,
		breachCounters:      make(map[string]int),
		cooldowns:           make(map[string]cooldownEntry),
		idleMarks:           make(map[string]time.Time),
		forceUpdateCounters: make(map[string]uint64),
	}
}

// AlertResponse is the JSON body spec.md §6 names for POST /alert.
type AlertResponse struct {
	Status        string `json:"status"`
	Action        string `json:"action,omitempty"`
	FromNode      string `json:"from_node,omitempty"`
	BreachCount   int    `json:"breach_count,omitempty"`
	Message       string `json:"message,omitempty"`
	Reason        string `json:"reason,omitempty"`
	ReportedNode  string `json:"reported_node,omitempty"`
	ActualNode    string `json:"actual_node,omitempty"`
}

// HandleAlert is the single entry point for inbound alerts (spec.md §4.2).
// The whole method runs under mu: intake/debounce, cooldown gate,
// stale-alert rejection, and action dispatch are one serialized unit, per
// spec.md §5's "single mutex covering the entire dispatch path".
func (e *Engine) HandleAlert(ctx context.Context, alert agent.Alert) AlertResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	scenario := Scenario(alert.Scenario)
	logger := logging.WithRequestIDField(ctx, e.logger)
	logging.LogAlertReceived(logger, alert.ServiceName, alert.ContainerID, string(scenario), alert.Node)

	// 1. Debounce (spec.md §4.2 "Alert intake and debouncing").
	e.breachCounters[alert.ContainerID]++
	count := e.breachCounters[alert.ContainerID]
	metrics.SetBreachCounter(alert.ContainerID, count)

	if count < e.cfg.RequiredBreaches {
		metrics.RecordAlertReceived(string(scenario), string(StatusWaiting))
		return AlertResponse{Status: string(StatusWaiting), BreachCount: count}
	}
	e.breachCounters[alert.ContainerID] = 0
	metrics.SetBreachCounter(alert.ContainerID, 0)

	// 2. Cooldown gate (spec.md §4.2 "Cooldown gate").
	if remaining, active := e.cooldownRemaining(alert.ServiceName, scenario); active {
		metrics.RecordAlertReceived(string(scenario), string(StatusCooldown))
		return AlertResponse{
			Status:  string(StatusCooldown),
			Message: fmt.Sprintf("Cooldown active (%ds/%ds)", int(remaining.Seconds()), int(e.cooldownFor(scenario).Seconds())),
		}
	}

	// 3. Stale-alert rejection, migration only (spec.md §4.2).
	if scenario == ScenarioMigration {
		actualNode, err := e.orch.GetServiceNode(ctx, alert.ServiceName, alert.ContainerID)
		if err != nil && !apierr.IsNotFound(err) {
			metrics.RecordAlertReceived(string(scenario), string(StatusError))
			return AlertResponse{Status: string(StatusError), Message: err.Error()}
		}
		if err == nil && actualNode != alert.Node {
			metrics.RecordAlertReceived(string(scenario), string(StatusIgnored))
			return AlertResponse{
				Status:       string(StatusIgnored),
				Reason:       "stale_alert",
				ReportedNode: alert.Node,
				ActualNode:   actualNode,
			}
		}
	}

	// 4. Dispatch.
	resp := e.dispatch(ctx, logger, alert, scenario)
	metrics.RecordAlertReceived(string(scenario), resp.Status)
	return resp
}

func (e *Engine) dispatch(ctx context.Context, logger *zap.Logger, alert agent.Alert, scenario Scenario) AlertResponse {
	action := string(scenario)
	metrics.RecordActionDispatched(action)
	logging.LogActionDispatched(logger, alert.ServiceName, action)

	// The cooldown is written at the start of dispatch (spec.md §4.2), so a
	// second alert arriving mid-action is rejected rather than re-entering.
	e.startCooldown(alert.ServiceName, scenario)

	start := time.Now()
	var outcome Outcome
	switch scenario {
	case ScenarioMigration:
		outcome = e.migrate(ctx, alert.ServiceName, alert.ContainerID, alert.Node)
	case ScenarioScaleUp:
		outcome = e.scaleUp(ctx, alert.ServiceName)
	default:
		outcome = refused(fmt.Sprintf("unrecognized scenario %q", scenario))
	}
	duration := time.Since(start)

	if outcome.Kind == OutcomeSuccess {
		e.completeCooldown(alert.ServiceName, scenario)
		e.classifierResetHook(alert.ContainerID)
	}

	metrics.RecordActionOutcome(action, string(outcome.Kind), duration)
	logging.LogActionOutcome(logger, alert.ServiceName, action, string(outcome.Kind), duration.String())
	e.audit.RecordAction(ctx, alert.ServiceName, scenario, outcome)

	return e.toResponse(scenario, alert, outcome)
}

// actionName maps a wire scenario tag to the short action name spec.md §8's
// end-to-end scenarios use in responses ("migration", not
// "scenario1_migration").
func actionName(scenario Scenario) string {
	switch scenario {
	case ScenarioMigration:
		return "migration"
	case ScenarioScaleUp:
		return "scale-up"
	case ScenarioScaleDown:
		return "scale-down"
	default:
		return string(scenario)
	}
}

// classifierResetHook is a seam for the binary wiring to reset the agent's
// display state machine on a successful action (spec.md §4.1: "reset on
// action"); the engine itself has no reference to the agent's in-process
// Classifier since they run in different processes, so by default this is
// a no-op and the reset happens naturally as breach counters clear.
func (e *Engine) classifierResetHook(string) {}

func (e *Engine) toResponse(scenario Scenario, alert agent.Alert, o Outcome) AlertResponse {
	switch o.Kind {
	case OutcomeSuccess:
		resp := AlertResponse{Status: string(StatusSuccess), Action: actionName(scenario)}
		switch scenario {
		case ScenarioMigration:
			resp.FromNode = alert.Node
		case ScenarioScaleUp, ScenarioScaleDown:
			// spec.md §4.2 Scale-up: "return success with the before/after
			// counts".
			resp.Message = fmt.Sprintf("replicas %d -> %d", o.BeforeReplicas, o.AfterReplicas)
		}
		return resp
	case OutcomeRolledBack:
		return AlertResponse{Status: string(StatusError), Action: actionName(scenario), Message: o.Reason}
	case OutcomeRefused:
		// Resource exhaustion and no-task conditions are non-error refusals
		// (spec.md §7), surfaced as "ignored" with an explanatory message
		// rather than the "error" status reserved for unhandled failures.
		return AlertResponse{Status: string(StatusIgnored), Action: actionName(scenario), Reason: "refused", Message: o.Reason}
	case OutcomeStale:
		return AlertResponse{Status: string(StatusIgnored), Reason: "stale_alert", ActualNode: o.ActualNode}
	default:
		return AlertResponse{Status: string(StatusError), Action: actionName(scenario), Message: o.Reason}
	}
}

// HealthStatus backs GET /health (spec.md §6).
func (e *Engine) HealthStatus() map[string]string {
	return map[string]string{"status": "healthy"}
}

// IntrospectionMetrics backs GET /metrics (spec.md §6): metrics_cache_size
// is always 0, because the Engine holds no reference to a metrics cache (the
// scale-down supervisor receives one only as its MetricsAggregator
// argument); it is reported here only for wire-format parity with spec.md's
// stated shape. active_cooldowns counts only cooldowns still in force.
func (e *Engine) IntrospectionMetrics() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]int{
		"metrics_cache_size": 0,
		"active_cooldowns":   e.activeCooldownCount(),
	}
}
