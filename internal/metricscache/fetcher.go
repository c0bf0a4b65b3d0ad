package metricscache

import (
	"context"
	"fmt"

	"github.com/swarmguard/swarmguard/internal/transport"
)

// Fetcher retrieves the current container metrics snapshot from one node's
// agent. Named only by interface so callers can substitute a fake in tests,
// the same "collaborator named only by interface" approach used throughout
// this module for external systems.
type Fetcher interface {
	FetchContainerMetrics(ctx context.Context, agentAddr string) (AgentMetricsResponse, error)
}

// HTTPFetcher is the production Fetcher: GET <agentAddr>/metrics/containers
// over the shared transport client (spec.md §4.4).
type HTTPFetcher struct {
	client *transport.Client
}

// NewHTTPFetcher builds an HTTPFetcher using client.
func NewHTTPFetcher(client *transport.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// FetchContainerMetrics implements Fetcher.
func (f *HTTPFetcher) FetchContainerMetrics(ctx context.Context, agentAddr string) (AgentMetricsResponse, error) {
	var resp AgentMetricsResponse
	url := fmt.Sprintf("%s/metrics/containers", agentAddr)
	if err := f.client.GetJSON(ctx, url, &resp); err != nil {
		return AgentMetricsResponse{}, err
	}
	return resp, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
