package agent

import "context"

// ContainerLister enumerates running containers on the local node and their
// raw resource counters. Named only by interface per spec.md §1 ("the
// orchestrator itself" is out of scope as a concrete implementation here);
// the agent binary backs this with CgroupLister, which reads the node's
// cgroup v2 files directly; tests use a fake.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]ContainerStats, error)
}

// MetricsSink is the TSDB writer collaborator (spec.md §1, §2): out of
// scope as a concrete implementation, named only by interface. The default
// binding is a no-op so the agent runs fully without a TSDB configured.
type MetricsSink interface {
	WriteSample(ctx context.Context, sample NodeSample) error
}

// NoopSink discards every sample.
type NoopSink struct{}

// WriteSample implements MetricsSink.
func (NoopSink) WriteSample(context.Context, NodeSample) error { return nil }

var _ MetricsSink = NoopSink{}
