// Command swarmguard-engine runs the recovery engine (spec.md §4.2): it
// receives classified alerts, debounces and gates them against cooldowns,
// dispatches zero-downtime migrations and scale-up actions, and runs the
// periodic scale-down supervisor.
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
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/swarmguard/swarmguard/internal/config"
	"github.com/swarmguard/swarmguard/internal/engine"
	"github.com/swarmguard/swarmguard/internal/logging"
	"github.com/swarmguard/swarmguard/internal/metrics"
	"github.com/swarmguard/swarmguard/internal/metricscache"
	"github.com/swarmguard/swarmguard/internal/orchestrator"
	"github.com/swarmguard/swarmguard/internal/transport"
	"github.com/swarmguard/swarmguard/pkg/audit"
)

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
	var kubeconfig string
	var namespace string

	cmd := &cobra.Command{
		Use:          "swarmguard-engine",
		Short:        "SwarmGuard recovery engine",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg, kubeconfig, namespace)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML/JSON config file (optional)")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "path to kubeconfig (uses in-cluster config if empty)")
	cmd.Flags().StringVar(&namespace, "namespace", "default", "namespace the managed services live in")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("swarmguard-engine %s (%s)\n", Version, Commit)
		},
	})
	return cmd
}

func run(ctx context.Context, cfg *config.Config, kubeconfig, namespace string) error {
	logger, err := logging.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	metrics.Register(prometheus.DefaultRegisterer)

	k8sConfig, err := buildKubeConfig(kubeconfig)
	if err != nil {
		return fmt.Errorf("build kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		return fmt.Errorf("build kubernetes client: %w", err)
	}
	orch := orchestrator.NewK8sClient(clientset, namespace)

	auditLogger := audit.NewAuditLogger(&audit.AuditLoggerConfig{Enabled: true, Logger: logger})
	audit.SetGlobalAuditLogger(auditLogger)

	e := engine.New(engine.Config{
		RequiredBreaches:        cfg.RequiredBreaches,
		CooldownMigration:       cfg.CooldownMigration,
		CooldownScaleUp:         cfg.CooldownScaleUp,
		CooldownScaleDown:       cfg.CooldownScaleDown,
		MaxReplicas:             cfg.MaxReplicas,
		MinReplicas:             cfg.MinReplicas,
		MigrationHealthTimeout:  cfg.MigrationHealthTimeout,
		ScaleDownSupervisorTick: cfg.ScaleDownSupervisorTick,
		CPUThreshold:            cfg.CPUThreshold,
		MemoryThreshold:         cfg.MemoryThreshold,
	}, orch, logger, engine.NewAuditAdapter(auditLogger))

	httpClient := transport.New(transport.WithTimeout(2*time.Second), transport.WithLogger(logger))
	cache := metricscache.NewCache(metricscache.NewHTTPFetcher(httpClient), logger)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runAggregateRefresh(runCtx, orch, cache, cfg.AgentMetricsPort, cfg.CacheTTL, logger)
	go e.RunScaleDownSupervisor(runCtx, cache)

	srv := engine.NewServer(e, logger)
	httpServer := &http.Server{Addr: cfg.EngineListenAddr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("engine listening", zap.String("addr", cfg.EngineListenAddr))
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
	logger.Info("shutting down engine")
	return httpServer.Shutdown(shutdownCtx)
}

// runAggregateRefresh periodically refreshes the metrics cache from every
// node currently hosting a replica of any managed service, so the scale-down
// supervisor's AggregateService calls see fresh per-task CPU%/memory%.
func runAggregateRefresh(ctx context.Context, orch orchestrator.Client, cache *metricscache.Cache, agentMetricsPort int, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			addrs, err := agentAddrs(ctx, orch, agentMetricsPort)
			if err != nil {
				logger.Warn("list services for metrics refresh failed", zap.Error(err))
				continue
			}
			cache.Refresh(ctx, addrs)
		}
	}
}

func agentAddrs(ctx context.Context, orch orchestrator.Client, agentMetricsPort int) (map[string]string, error) {
	services, err := orch.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	addrs := make(map[string]string)
	for _, svc := range services {
		tasks, err := orch.ListReplicas(ctx, svc.Name)
		if err != nil {
			continue
		}
		for _, t := range tasks {
			if t.State != "running" {
				continue
			}
			addrs[t.NodeName] = fmt.Sprintf("http://%s:%d", t.NodeName, agentMetricsPort)
		}
	}
	return addrs, nil
}

func buildKubeConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-cluster config: %w", err)
	}
	return cfg, nil
}
