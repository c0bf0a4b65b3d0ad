package agent

import "sync"

// Thresholds holds the classification bounds of spec.md §4.1's table.
type Thresholds struct {
	CPUHigh     float64 // default 75
	MemoryHigh  float64 // default 80
	NetworkLow  float64 // default 35
	NetworkHigh float64 // default 65
}

// DefaultThresholds returns spec.md §4.1's stated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{CPUHigh: 75, MemoryHigh: 80, NetworkLow: 35, NetworkHigh: 65}
}

// Classify applies spec.md §4.1's classification table. The two firing
// scenarios are mutually exclusive by construction (net% cannot be both
// < NetworkLow and > NetworkHigh).
func (t Thresholds) Classify(m Metrics) Scenario {
	stressed := m.CPUPercent > t.CPUHigh || m.MemoryPercent > t.MemoryHigh
	if !stressed {
		return ScenarioNone
	}
	switch {
	case m.NetworkPercent < t.NetworkLow:
		return ScenarioMigration
	case m.NetworkPercent > t.NetworkHigh:
		return ScenarioScaleUp
	default:
		return ScenarioNone
	}
}

// Classifier tracks the per-container HEALTHY/BREACHING display state
// machine of spec.md §4.1. It does not debounce — every matching tick still
// produces a Scenario for the caller to alert on; debouncing is the
// engine's responsibility (spec.md §4.2).
type Classifier struct {
	thresholds Thresholds

	mu               sync.Mutex
	state            map[string]ContainerState
	consecutiveClear map[string]int
}

// NewClassifier builds a Classifier with the given thresholds.
func NewClassifier(thresholds Thresholds) *Classifier {
	return &Classifier{
		thresholds:       thresholds,
		state:            make(map[string]ContainerState),
		consecutiveClear: make(map[string]int),
	}
}

// Evaluate classifies one container's metrics and updates its display
// state, returning the fired scenario.
func (c *Classifier) Evaluate(containerID string, m Metrics) Scenario {
	scenario := c.thresholds.Classify(m)

	c.mu.Lock()
	defer c.mu.Unlock()

	if scenario != ScenarioNone {
		c.state[containerID] = StateBreaching
		c.consecutiveClear[containerID] = 0
		return scenario
	}

	if c.state[containerID] == StateBreaching {
		c.consecutiveClear[containerID]++
		if c.consecutiveClear[containerID] >= 2 {
			c.state[containerID] = StateHealthy
			c.consecutiveClear[containerID] = 0
		}
	}
	return ScenarioNone
}

// State returns the current display state for a container (HEALTHY if never seen).
func (c *Classifier) State(containerID string) ContainerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.state[containerID]; ok {
		return s
	}
	return StateHealthy
}

// Reset clears a container's state back to HEALTHY ("reset on action",
// spec.md §4.1). No component calls it today: the engine runs in another
// process and does not report actions back to the agent.
func (c *Classifier) Reset(containerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[containerID] = StateHealthy
	c.consecutiveClear[containerID] = 0
}
