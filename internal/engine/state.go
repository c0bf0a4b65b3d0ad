package engine

import "time"

// Scenario mirrors the wire-format scenario tags of spec.md §6. The engine
// additionally recognizes ScenarioScaleDown, which never arrives over the
// wire (spec.md §4.1: "Scale-down is never classified by the agent") but is
// used internally to key ScaleDown's cooldown entries and outcomes.
type Scenario string

const (
	ScenarioMigration Scenario = "scenario1_migration"
	ScenarioScaleUp   Scenario = "scenario2_scale_up"
	ScenarioScaleDown Scenario = "scenario2_scale_down"
)

// Status is the closed set of alert-response statuses spec.md §6 names.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusCooldown Status = "cooldown"
	StatusIgnored  Status = "ignored"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// cooldownEntry is spec.md §3's CooldownEntry, keyed by service name.
type cooldownEntry struct {
	last     time.Time
	scenario Scenario
}

// cooldownFor returns the minimum interval between two actions of scenario
// on the same service (spec.md §4.2's cooldown table).
func (e *Engine) cooldownFor(scenario Scenario) time.Duration {
	switch scenario {
	case ScenarioMigration:
		return e.cfg.CooldownMigration
	case ScenarioScaleUp:
		return e.cfg.CooldownScaleUp
	case ScenarioScaleDown:
		return e.cfg.CooldownScaleDown
	default:
		return 0
	}
}

// cooldownRemaining reports how long is left before scenario may act again
// on service, and whether the cooldown gate should reject the alert
// (spec.md §4.2 Cooldown gate).
func (e *Engine) cooldownRemaining(service string, scenario Scenario) (time.Duration, bool) {
	entry, ok := e.cooldowns[service]
	if !ok {
		return 0, false
	}
	elapsed := time.Since(entry.last)
	window := e.cooldownFor(scenario)
	if elapsed >= window {
		return 0, false
	}
	return window - elapsed, true
}

// activeCooldownCount returns how many services are still inside the
// cooldown window of the scenario that last wrote their entry.
func (e *Engine) activeCooldownCount() int {
	n := 0
	for service, entry := range e.cooldowns {
		if _, active := e.cooldownRemaining(service, entry.scenario); active {
			n++
		}
	}
	return n
}

// startCooldown records the cooldown write at the start of action dispatch
// (spec.md §4.2: "written at the start of action dispatch").
func (e *Engine) startCooldown(service string, scenario Scenario) {
	e.cooldowns[service] = cooldownEntry{last: time.Now(), scenario: scenario}
}

// completeCooldown re-writes the cooldown at the completion of a successful
// action (spec.md §4.2: "re-written at completion of a successful action;
// this covers both in-flight rejection and post-success quiescence").
func (e *Engine) completeCooldown(service string, scenario Scenario) {
	e.cooldowns[service] = cooldownEntry{last: time.Now(), scenario: scenario}
}
