package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// withEmptyConfigDir points the package-level search path at a fresh,
// empty directory for the duration of the test, so "no file present" is
// deterministic regardless of what's on the machine running the test.
func withEmptyConfigDir(t *testing.T) {
	t.Helper()
	original := ConfigDir
	ConfigDir = t.TempDir()
	t.Cleanup(func() { ConfigDir = original })
}

func TestLoad_DefaultsWhenNoFileOrEnv(t *testing.T) {
	withEmptyConfigDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "edge-1", cfg.LocalDevice)
	require.Equal(t, "cloud-1", cfg.CloudDevice)
	require.Equal(t, 5, cfg.PriorityLevels)
	require.Equal(t, 20, cfg.HistoryWindow)
	require.Equal(t, 0.07, cfg.Hysteresis)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
local_device: jetson-1
cloud_device: gcp-us-east
priority_levels: 7
latency_constraint: 2.5
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "jetson-1", cfg.LocalDevice)
	require.Equal(t, "gcp-us-east", cfg.CloudDevice)
	require.Equal(t, 7, cfg.PriorityLevels)
	require.Equal(t, 2.5, cfg.LatencyConstraint)
	// Untouched fields keep their defaults.
	require.Equal(t, 20, cfg.HistoryWindow)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`local_device: jetson-1`), 0644))

	t.Setenv("CONDUCTOR_LOCAL_DEVICE", "jetson-2")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "jetson-2", cfg.LocalDevice)
}

func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsInvalidPriorityLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`priority_levels: 1`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "priority_levels")
}

func TestConfig_AIMDParamsProjection(t *testing.T) {
	withEmptyConfigDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	params := cfg.AIMDParams()
	require.Equal(t, cfg.Hysteresis, params.Hysteresis)
	require.Equal(t, cfg.BreachNeeded, params.BreachNeeded)
	require.Equal(t, cfg.HistoryWindow, params.HistoryWindow)
}
