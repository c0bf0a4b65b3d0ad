package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, DefaultThresholdsSanity(cfg))
}

// DefaultThresholdsSanity is a small helper asserting the spec.md §4/§6
// defaults round-trip through viper unchanged when no file or env override
// is present.
func DefaultThresholdsSanity(cfg *Config) bool {
	d := Defaults()
	return cfg.CPUThreshold == d.CPUThreshold &&
		cfg.MemoryThreshold == d.MemoryThreshold &&
		cfg.RequiredBreaches == d.RequiredBreaches &&
		cfg.LBAlgorithm == d.LBAlgorithm &&
		cfg.TargetPort == d.TargetPort
}

func TestValidate_MaxLessThanMinRejected(t *testing.T) {
	cfg := Defaults()
	cfg.MinReplicas = 5
	cfg.MaxReplicas = 2
	require.Error(t, cfg.Validate())
}

func TestValidate_RequiredBreachesMustBePositive(t *testing.T) {
	cfg := Defaults()
	cfg.RequiredBreaches = 0
	require.Error(t, cfg.Validate())
}

func TestValidate_UnknownAlgorithmRejected(t *testing.T) {
	cfg := Defaults()
	cfg.LBAlgorithm = "round_trip"
	require.Error(t, cfg.Validate())
}

func TestValidate_DefaultsPass(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}
