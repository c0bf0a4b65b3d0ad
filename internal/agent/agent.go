package agent

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/metrics"
)

// Agent drives the per-node sampling loop: collect, classify, send alerts,
// write to the TSDB sink, on a fixed poll interval (spec.md §4.1).
type Agent struct {
	node         string
	pollInterval time.Duration
	collector    *Collector
	classifier   *Classifier
	sender       *AlertSender
	sink         MetricsSink
	logger       *zap.Logger

	mu     sync.RWMutex
	latest NodeSample
}

// Config bundles the Agent's construction parameters.
type Config struct {
	Node         string
	PollInterval time.Duration
	Lister       ContainerLister
	Thresholds   Thresholds
	NominalNetworkCapacityMbps float64
	Sender       *AlertSender
	Sink         MetricsSink
	Logger       *zap.Logger
}

// New builds an Agent.
func New(cfg Config) *Agent {
	if cfg.Sink == nil {
		cfg.Sink = NoopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Agent{
		node:         cfg.Node,
		pollInterval: cfg.PollInterval,
		collector:    NewCollector(cfg.Lister, cfg.NominalNetworkCapacityMbps),
		classifier:   NewClassifier(cfg.Thresholds),
		sender:       cfg.Sender,
		sink:         cfg.Sink,
		logger:       cfg.Logger,
	}
}

// Run polls every pollInterval until ctx is cancelled. Poll duration is
// measured; an overrun is logged but the next tick is never skipped
// (spec.md §4.1 Sampling loop contract).
func (a *Agent) Run(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Agent) tick(ctx context.Context) {
	start := time.Now()

	facts, err := a.collector.Collect(ctx, a.node, start)
	if err != nil {
		a.logger.Warn("collection failed", zap.Error(err))
		return
	}

	sample := NodeSample{Node: a.node, Timestamp: start, Facts: facts}

	a.mu.Lock()
	a.latest = sample
	a.mu.Unlock()

	if err := a.sink.WriteSample(ctx, sample); err != nil {
		a.logger.Warn("tsdb write failed", zap.Error(err))
	}

	for _, fact := range facts {
		scenario := a.classifier.Evaluate(fact.ContainerID, fact.Metrics)
		if scenario == ScenarioNone {
			continue
		}

		metrics.RecordAlertEmitted(a.node, string(scenario))

		alert := Alert{
			Timestamp:     start.Unix(),
			Node:          a.node,
			ContainerID:   fact.ContainerID,
			ContainerName: fact.ContainerName,
			ServiceName:   fact.ServiceName,
			Scenario:      scenario,
			Metrics:       fact.Metrics,
		}
		if a.sender != nil {
			a.sender.Send(ctx, alert)
		}
	}

	duration := time.Since(start)
	overran := duration > a.pollInterval
	metrics.RecordPoll(a.node, duration, overran)
	if overran {
		a.logger.Warn("poll tick exceeded configured interval",
			zap.Duration("duration", duration),
			zap.Duration("interval", a.pollInterval),
		)
	}
}

// Latest returns the most recent batch, for the router's metrics cache
// (spec.md §4.1 "exposes the most recent batch via a read-only accessor").
func (a *Agent) Latest() NodeSample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// ContainerState exposes a container's debounce-display state.
func (a *Agent) ContainerState(containerID string) ContainerState {
	return a.classifier.State(containerID)
}
