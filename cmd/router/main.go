// Command swarmguard-router runs the intelligent request router (spec.md
// §4.3): it discovers healthy replicas of a target service, tracks
// in-flight leases, selects a replica per one of four policies, and
// transparently proxies every request.
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
	"github.com/swarmguard/swarmguard/internal/logging"
	"github.com/swarmguard/swarmguard/internal/metrics"
	"github.com/swarmguard/swarmguard/internal/orchestrator"
	"github.com/swarmguard/swarmguard/internal/router"
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
	var service string

	cmd := &cobra.Command{
		Use:          "swarmguard-router",
		Short:        "SwarmGuard intelligent request router",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if service != "" {
				cfg.TargetService = service
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if cfg.TargetService == "" {
				return fmt.Errorf("target service must be set via --service or target_service config key")
			}
			return run(cmd.Context(), cfg, kubeconfig, namespace)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML/JSON config file (optional)")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "path to kubeconfig (uses in-cluster config if empty)")
	cmd.Flags().StringVar(&namespace, "namespace", "default", "namespace the target service lives in")
	cmd.Flags().StringVar(&service, "service", "", "name of the service to route traffic to (overrides config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("swarmguard-router %s (%s)\n", Version, Commit)
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

	r := router.New(router.Config{
		Algorithm:            router.Algorithm(cfg.LBAlgorithm),
		Weights:              router.Weights{CPU: cfg.CPUWeight, Memory: cfg.MemoryWeight, Network: cfg.NetworkWeight, LeaseCount: cfg.LeaseCountWeight},
		LeaseDuration:        cfg.LeaseDuration,
		LeaseCleanupInterval: cfg.LeaseCleanupInterval,
		HealthCheckInterval:  cfg.HealthCheckInterval,
		CacheTTL:             cfg.CacheTTL,
		ProxyTimeout:         cfg.ProxyTimeout,
		TargetPort:           cfg.TargetPort,
		AgentMetricsPort:     cfg.AgentMetricsPort,
		LogEveryNRequests:    100,
	}, orch, cfg.TargetService, logger)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go r.Run(runCtx)

	srv := router.NewServer(r, logger)
	httpServer := &http.Server{Addr: cfg.RouterListenAddr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("router listening",
			zap.String("addr", cfg.RouterListenAddr),
			zap.String("service", cfg.TargetService),
			zap.String("algorithm", cfg.LBAlgorithm),
		)
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
	logger.Info("shutting down router")
	return httpServer.Shutdown(shutdownCtx)
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
