// Package metricscache fetches and caches the per-container metrics each
// node's agent exposes at GET /metrics/containers (spec.md §6), and is
// shared by the router's metrics-based selection policies (spec.md §4.3)
// and the recovery engine's scale-down supervisor (spec.md §4.2, §9's
// resolution of get_service_aggregate_metrics). The two consumers share
// this package's code; each binary builds and refreshes its own Cache.
package metricscache

import "time"

// ContainerMetric is one container's latest snapshot as reported by its
// node's agent, matching the agent's wire format (spec.md §6).
type ContainerMetric struct {
	ContainerID    string  `json:"container_id"`
	ContainerName  string  `json:"container_name"`
	ServiceName    string  `json:"service_name"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	NetworkRxMbps  float64 `json:"network_rx_mbps"`
	NetworkTxMbps  float64 `json:"network_tx_mbps"`
	NetworkPercent float64 `json:"network_percent"`
}

// AgentMetricsResponse is the body of GET /metrics/containers (spec.md §6).
type AgentMetricsResponse struct {
	Node       string             `json:"node"`
	Timestamp  int64              `json:"timestamp"`
	Containers []ContainerMetric  `json:"containers"`
}

// entry is one cached container snapshot, stamped with when it was fetched.
type entry struct {
	metric   ContainerMetric
	node     string
	fetchedAt time.Time
}
