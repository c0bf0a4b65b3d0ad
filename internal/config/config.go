// Package config loads the recognized configuration keys of spec.md §6 via
// viper (file + environment), with defaults bound the way the teacher's
// pkg/controller/options.go binds its own Options defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every recognized key from spec.md §6's configuration table,
// plus the listen/upstream addresses needed to wire the three binaries
// together (not named individually by the spec, which treats wiring as an
// operational concern, but required for a runnable implementation).
type Config struct {
	// Agent
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	CPUThreshold           float64       `mapstructure:"cpu_threshold"`
	MemoryThreshold        float64       `mapstructure:"memory_threshold"`
	NetworkThresholdLow    float64       `mapstructure:"network_threshold_low"`
	NetworkThresholdHigh   float64       `mapstructure:"network_threshold_high"`
	NominalNetworkCapacity float64       `mapstructure:"nominal_network_capacity_mbps"`

	// Engine
	RequiredBreaches        int           `mapstructure:"required_breaches"`
	CooldownMigration       time.Duration `mapstructure:"cooldown_migration"`
	CooldownScaleUp         time.Duration `mapstructure:"cooldown_scale_up"`
	CooldownScaleDown       time.Duration `mapstructure:"cooldown_scale_down"`
	MaxReplicas             int           `mapstructure:"max_replicas"`
	MinReplicas             int           `mapstructure:"min_replicas"`
	MigrationHealthTimeout  time.Duration `mapstructure:"migration_health_timeout"`
	ScaleDownSupervisorTick time.Duration `mapstructure:"scale_down_supervisor_tick"`

	// Router
	LBAlgorithm         string        `mapstructure:"lb_algorithm"`
	LeaseDuration       time.Duration `mapstructure:"lease_duration"`
	LeaseCleanupInterval time.Duration `mapstructure:"lease_cleanup_interval"`
	CPUWeight           float64       `mapstructure:"cpu_weight"`
	MemoryWeight        float64       `mapstructure:"memory_weight"`
	NetworkWeight       float64       `mapstructure:"network_weight"`
	LeaseCountWeight    float64       `mapstructure:"lease_count_weight"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	ProxyTimeout        time.Duration `mapstructure:"proxy_timeout"`

	// TargetPort/AgentMetricsPort resolve a task's routable address: task
	// placement (orchestrator.Task.NodeName) names a host, not a URL, so the
	// router combines it with these ports the way a real service-mesh sidecar
	// would (spec.md §4.3 "resolve routable address" names the step, not the
	// scheme).
	TargetPort     int `mapstructure:"target_port"`
	AgentMetricsPort int `mapstructure:"agent_metrics_port"`

	// Wiring (not part of the core's configuration-key table in spec.md §6,
	// but required to run the three binaries against each other).
	AgentListenAddr  string `mapstructure:"agent_listen_addr"`
	EngineListenAddr string `mapstructure:"engine_listen_addr"`
	RouterListenAddr string `mapstructure:"router_listen_addr"`
	EngineURL        string `mapstructure:"engine_url"`
	OrchestratorURL  string `mapstructure:"orchestrator_url"`
	TargetService    string `mapstructure:"target_service"`
	NodeName         string `mapstructure:"node_name"`
	Development      bool   `mapstructure:"development"`
}

// Defaults returns a Config populated with the defaults spec.md §4 and §6 name.
func Defaults() *Config {
	return &Config{
		PollInterval:           5 * time.Second,
		CPUThreshold:           75,
		MemoryThreshold:        80,
		NetworkThresholdLow:    35,
		NetworkThresholdHigh:   65,
		NominalNetworkCapacity: 100,

		RequiredBreaches:        2,
		CooldownMigration:       60 * time.Second,
		CooldownScaleUp:         60 * time.Second,
		CooldownScaleDown:       180 * time.Second,
		MaxReplicas:             10,
		MinReplicas:             1,
		MigrationHealthTimeout:  40 * time.Second,
		ScaleDownSupervisorTick: 60 * time.Second,

		LBAlgorithm:          "hybrid",
		LeaseDuration:        30 * time.Second,
		LeaseCleanupInterval: 1 * time.Second,
		CPUWeight:            0.5,
		MemoryWeight:         0.3,
		NetworkWeight:        0.2,
		LeaseCountWeight:     10,
		HealthCheckInterval:  5 * time.Second,
		CacheTTL:             1 * time.Second,
		ProxyTimeout:         30 * time.Second,
		TargetPort:           8080,
		AgentMetricsPort:     9100,

		AgentListenAddr:  ":9100",
		EngineListenAddr: ":9200",
		RouterListenAddr: ":9300",
	}
}

// Load builds a Config from defaults, an optional config file, and
// SWARMGUARD_-prefixed environment variables, the way the teacher's
// cmd/controller binds flags over defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("swarmguard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Defaults()
	bindDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("cpu_threshold", cfg.CPUThreshold)
	v.SetDefault("memory_threshold", cfg.MemoryThreshold)
	v.SetDefault("network_threshold_low", cfg.NetworkThresholdLow)
	v.SetDefault("network_threshold_high", cfg.NetworkThresholdHigh)
	v.SetDefault("nominal_network_capacity_mbps", cfg.NominalNetworkCapacity)

	v.SetDefault("required_breaches", cfg.RequiredBreaches)
	v.SetDefault("cooldown_migration", cfg.CooldownMigration)
	v.SetDefault("cooldown_scale_up", cfg.CooldownScaleUp)
	v.SetDefault("cooldown_scale_down", cfg.CooldownScaleDown)
	v.SetDefault("max_replicas", cfg.MaxReplicas)
	v.SetDefault("min_replicas", cfg.MinReplicas)
	v.SetDefault("migration_health_timeout", cfg.MigrationHealthTimeout)
	v.SetDefault("scale_down_supervisor_tick", cfg.ScaleDownSupervisorTick)

	v.SetDefault("lb_algorithm", cfg.LBAlgorithm)
	v.SetDefault("lease_duration", cfg.LeaseDuration)
	v.SetDefault("lease_cleanup_interval", cfg.LeaseCleanupInterval)
	v.SetDefault("cpu_weight", cfg.CPUWeight)
	v.SetDefault("memory_weight", cfg.MemoryWeight)
	v.SetDefault("network_weight", cfg.NetworkWeight)
	v.SetDefault("lease_count_weight", cfg.LeaseCountWeight)
	v.SetDefault("health_check_interval", cfg.HealthCheckInterval)
	v.SetDefault("cache_ttl", cfg.CacheTTL)
	v.SetDefault("proxy_timeout", cfg.ProxyTimeout)
	v.SetDefault("target_port", cfg.TargetPort)
	v.SetDefault("agent_metrics_port", cfg.AgentMetricsPort)

	v.SetDefault("agent_listen_addr", cfg.AgentListenAddr)
	v.SetDefault("engine_listen_addr", cfg.EngineListenAddr)
	v.SetDefault("router_listen_addr", cfg.RouterListenAddr)
}

// Validate rejects configuration that would violate a spec invariant before
// any subsystem starts (e.g. min_replicas > max_replicas would make scale-up
// and scale-down simultaneously impossible to satisfy at the boundary).
func (c *Config) Validate() error {
	if c.MinReplicas < 0 {
		return fmt.Errorf("min_replicas must be >= 0")
	}
	if c.MaxReplicas < c.MinReplicas {
		return fmt.Errorf("max_replicas (%d) must be >= min_replicas (%d)", c.MaxReplicas, c.MinReplicas)
	}
	if c.RequiredBreaches < 1 {
		return fmt.Errorf("required_breaches must be >= 1")
	}
	switch c.LBAlgorithm {
	case "lease", "metrics", "hybrid", "round-robin":
	default:
		return fmt.Errorf("lb_algorithm must be one of lease|metrics|hybrid|round-robin, got %q", c.LBAlgorithm)
	}
	return nil
}
