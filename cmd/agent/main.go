// Command swarmguard-agent runs the per-node sampling and classification
// agent (spec.md §4.1): it polls local container stats on a fixed interval,
// classifies each container against the migration/scale-up scenarios, and
// POSTs qualifying alerts to the recovery engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/agent"
	"github.com/swarmguard/swarmguard/internal/config"
	"github.com/swarmguard/swarmguard/internal/logging"
	"github.com/swarmguard/swarmguard/internal/metrics"
	"github.com/swarmguard/swarmguard/internal/transport"
)

// Version information, set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string
	var node string
	var engineURL string
	var cgroupRoot string

	cmd := &cobra.Command{
		Use:          "swarmguard-agent",
		Short:        "SwarmGuard per-node sampling and classification agent",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if node != "" {
				cfg.NodeName = node
			}
			if engineURL != "" {
				cfg.EngineURL = engineURL
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg, cgroupRoot)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML/JSON config file (optional)")
	cmd.Flags().StringVar(&node, "node", "", "this node's name (overrides config)")
	cmd.Flags().StringVar(&engineURL, "engine-url", "", "recovery engine base URL (overrides config)")
	cmd.Flags().StringVar(&cgroupRoot, "cgroup-root", "", "cgroup v2 mount point to read container stats from")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("swarmguard-agent %s (%s)\n", Version, Commit)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, cgroupRoot string) error {
	logger, err := logging.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	metrics.Register(prometheus.DefaultRegisterer)

	node := cfg.NodeName
	if node == "" {
		if hostname, err := os.Hostname(); err == nil {
			node = hostname
		}
	}

	// A sustained engine outage must not leave every poll tick blocked
	// behind a 5s timeout, and alert bursts during an incident must not
	// hammer a struggling engine: the breaker trips after repeated
	// failures, the limiter caps the outbound rate.
	breaker := transport.NewCircuitBreaker(transport.DefaultCircuitBreakerConfig(), logger)
	httpClient := transport.New(
		transport.WithTimeout(5*time.Second),
		transport.WithLogger(logger),
		transport.WithCircuitBreaker(breaker),
		transport.WithRateLimit(20, 20),
	)

	sender := agent.NewAlertSender(httpClient, cfg.EngineURL, logger)

	a := agent.New(agent.Config{
		Node:         node,
		PollInterval: cfg.PollInterval,
		Lister:       agent.NewCgroupLister(cgroupRoot),
		Thresholds: agent.Thresholds{
			CPUHigh:     cfg.CPUThreshold,
			MemoryHigh:  cfg.MemoryThreshold,
			NetworkLow:  cfg.NetworkThresholdLow,
			NetworkHigh: cfg.NetworkThresholdHigh,
		},
		NominalNetworkCapacityMbps: cfg.NominalNetworkCapacity,
		Sender:                     sender,
		Logger:                     logger,
	})

	srv := agent.NewServer(a, logger)
	httpServer := &http.Server{Addr: cfg.AgentListenAddr, Handler: srv}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.Run(runCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent listening", zap.String("addr", cfg.AgentListenAddr), zap.String("node", node))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-runCtx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down agent")
	return httpServer.Shutdown(shutdownCtx)
}
