// Package agent implements the per-node sampling & classification agent of
// spec.md §4.1: bounded-latency metrics collection, scenario classification,
// and alert emission with at most one retry per alert.
package agent

import "time"

// Scenario is one of the classifier's three outcomes (spec.md §4.1). Scale-
// down is never produced here — only the engine's supervisor detects it.
type Scenario string

const (
	ScenarioNone      Scenario = ""
	ScenarioMigration Scenario = "scenario1_migration"
	ScenarioScaleUp   Scenario = "scenario2_scale_up"
)

// ContainerState is the per-container debounce-display state machine named
// in spec.md §4.1. The agent does not debounce (that's the engine's job);
// this is purely an observability aid, readable in-process through
// Agent.ContainerState; the metrics endpoint does not report it.
type ContainerState string

const (
	StateHealthy   ContainerState = "HEALTHY"
	StateBreaching ContainerState = "BREACHING"
)

// ContainerStats is one container's raw resource counters as read from the
// container runtime for a single poll tick. Cumulative counters (CPU ticks,
// network bytes) are compared against the previous tick's reading by the
// Collector to produce rates.
type ContainerStats struct {
	ID          string
	Name        string
	ServiceName string

	CPUTicksUsed  uint64
	SystemTicks   uint64
	OnlineCPUs    int
	MemUsedBytes  uint64
	MemLimitBytes uint64
	RxBytes       uint64
	TxBytes       uint64
}

// Metrics is the computed per-container percentage snapshot (spec.md §6's
// wire-format "metrics" object).
type Metrics struct {
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryMB       float64 `json:"memory_mb"`
	MemoryPercent  float64 `json:"memory_percent"`
	NetworkRxMbps  float64 `json:"network_rx_mbps"`
	NetworkTxMbps  float64 `json:"network_tx_mbps"`
	NetworkPercent float64 `json:"network_percent"`
}

// ContainerFact pairs a container identity with its latest computed
// metrics and node — the agent's per-tick unit of output (spec.md §3).
type ContainerFact struct {
	ContainerID   string
	ContainerName string
	ServiceName   string
	NodeName      string
	Metrics       Metrics
}

// NodeSample is one batch record for the TSDB sink (spec.md §3): every
// container's facts from a single poll tick, stamped with the node and
// wall-clock time.
type NodeSample struct {
	Node      string
	Timestamp time.Time
	Facts     []ContainerFact
}

// Alert is the wire-format payload POSTed to the engine (spec.md §6).
type Alert struct {
	Timestamp     int64    `json:"timestamp"`
	Node          string   `json:"node"`
	ContainerID   string   `json:"container_id"`
	ContainerName string   `json:"container_name"`
	ServiceName   string   `json:"service_name"`
	Scenario      Scenario `json:"scenario"`
	Metrics       Metrics  `json:"metrics"`
}
