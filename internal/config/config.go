// Package config loads the orchestrator's layered configuration: built-in
// defaults, then a conductor.yaml file, then CONDUCTOR_-prefixed
// environment variables, in that order of increasing precedence. The
// layering and the $HOME/.config/<app> search path mirror the teacher's
// viper.AddConfigPath/SetConfigName/SetConfigFile bootstrap in
// cmd/main.go's initialize().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/edgeflow/conductor/internal/scheduler"
)

// ConfigDir is the default search path for conductor.yaml.
var ConfigDir = defaultConfigDir()

func defaultConfigDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "conductor")
	}
	return "."
}

// Config is every tunable named across spec.md §4-§6: ambient logging and
// listen addresses, the AIMD agent's control-law constants, the priority
// estimator/queue sizing, and the three persisted-state paths.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	BackendAddr     string `mapstructure:"backend_addr"`
	DistributorAddr string `mapstructure:"distributor_addr"`
	SchedulerAddr   string `mapstructure:"scheduler_addr"`
	ControllerAddr  string `mapstructure:"controller_addr"`

	// LocalDevice is this process's own Controller device name; CloudDevice
	// is the fallback device new sources are scheduled onto before any
	// DelayHistory exists. Peers maps every other known device name to its
	// Controller base URL for HTTP forwarding.
	LocalDevice string            `mapstructure:"local_device"`
	CloudDevice string            `mapstructure:"cloud_device"`
	Peers       map[string]string `mapstructure:"peers"`

	LatencyConstraint float64 `mapstructure:"latency_constraint"`
	InitialPipeSeg    int     `mapstructure:"initial_pipe_seg"`
	Hysteresis        float64 `mapstructure:"hysteresis"`
	BreachNeeded      int     `mapstructure:"breach_needed"`
	CooldownSteps     int     `mapstructure:"cooldown_steps"`
	DecreaseFactor    float64 `mapstructure:"aimd_decrease_factor"`
	IncreaseRate      float64 `mapstructure:"increase_rate"`
	EWMAAlpha         float64 `mapstructure:"ewma_alpha"`
	HistoryWindow     int     `mapstructure:"history_window"`

	PriorityLevels          int    `mapstructure:"priority_levels"`
	UrgencyHistoryDir       string `mapstructure:"urgency_history_dir"`
	InstanceCacheCapacity   int    `mapstructure:"instance_cache_capacity"`
	VisualizationConfigPath string `mapstructure:"visualization_config_path"`

	DistributorDBPath    string `mapstructure:"distributor_db_path"`
	ResourceManifestPath string `mapstructure:"resource_manifest_path"`
}

func defaults() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",

		BackendAddr:     ":8080",
		DistributorAddr: ":8081",
		SchedulerAddr:   ":8082",
		ControllerAddr:  ":8083",

		LocalDevice: "edge-1",
		CloudDevice: "cloud-1",
		Peers:       map[string]string{},

		LatencyConstraint: 1.0,
		InitialPipeSeg:    0,
		Hysteresis:        0.07,
		BreachNeeded:      2,
		CooldownSteps:     1,
		DecreaseFactor:    0.5,
		IncreaseRate:      1.0,
		EWMAAlpha:         0.3,
		HistoryWindow:     20,

		PriorityLevels:          5,
		UrgencyHistoryDir:       filepath.Join(ConfigDir, "urgency_history"),
		InstanceCacheCapacity:   0,
		VisualizationConfigPath: filepath.Join(ConfigDir, "visualization_config.yaml"),

		DistributorDBPath:    filepath.Join(ConfigDir, "distributor.db"),
		ResourceManifestPath: filepath.Join(ConfigDir, "resources.yaml"),
	}
}

// Load resolves a Config from, in increasing order of precedence: the
// defaults above, conductor.yaml (searched in ConfigDir, or cfgFile if
// non-empty), and CONDUCTOR_-prefixed environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	bindDefaults(v, defaults())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(ConfigDir)
		v.SetConfigName("conductor")
	}

	v.SetEnvPrefix("conductor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)

	v.SetDefault("backend_addr", d.BackendAddr)
	v.SetDefault("distributor_addr", d.DistributorAddr)
	v.SetDefault("scheduler_addr", d.SchedulerAddr)
	v.SetDefault("controller_addr", d.ControllerAddr)

	v.SetDefault("local_device", d.LocalDevice)
	v.SetDefault("cloud_device", d.CloudDevice)
	v.SetDefault("peers", d.Peers)

	v.SetDefault("latency_constraint", d.LatencyConstraint)
	v.SetDefault("initial_pipe_seg", d.InitialPipeSeg)
	v.SetDefault("hysteresis", d.Hysteresis)
	v.SetDefault("breach_needed", d.BreachNeeded)
	v.SetDefault("cooldown_steps", d.CooldownSteps)
	v.SetDefault("aimd_decrease_factor", d.DecreaseFactor)
	v.SetDefault("increase_rate", d.IncreaseRate)
	v.SetDefault("ewma_alpha", d.EWMAAlpha)
	v.SetDefault("history_window", d.HistoryWindow)

	v.SetDefault("priority_levels", d.PriorityLevels)
	v.SetDefault("urgency_history_dir", d.UrgencyHistoryDir)
	v.SetDefault("instance_cache_capacity", d.InstanceCacheCapacity)
	v.SetDefault("visualization_config_path", d.VisualizationConfigPath)

	v.SetDefault("distributor_db_path", d.DistributorDBPath)
	v.SetDefault("resource_manifest_path", d.ResourceManifestPath)
}

// Validate rejects settings that would make downstream components panic
// or divide by zero rather than fail with a clear message at startup.
func (c *Config) Validate() error {
	if c.PriorityLevels < 2 {
		return fmt.Errorf("priority_levels must be >= 2, got %d", c.PriorityLevels)
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("history_window must be >= 1, got %d", c.HistoryWindow)
	}
	if c.LocalDevice == "" {
		return fmt.Errorf("local_device must not be empty")
	}
	if c.CloudDevice == "" {
		return fmt.Errorf("cloud_device must not be empty")
	}
	if c.BreachNeeded < 1 {
		return fmt.Errorf("breach_needed must be >= 1, got %d", c.BreachNeeded)
	}
	return nil
}

// AIMDParams projects the control-law fields onto scheduler.AIMDParams,
// keeping the scheduler package free of any config-layer dependency.
func (c *Config) AIMDParams() scheduler.AIMDParams {
	return scheduler.AIMDParams{
		Hysteresis:     c.Hysteresis,
		BreachNeeded:   c.BreachNeeded,
		CooldownSteps:  c.CooldownSteps,
		DecreaseFactor: c.DecreaseFactor,
		IncreaseRate:   c.IncreaseRate,
		EWMAAlpha:      c.EWMAAlpha,
		HistoryWindow:  c.HistoryWindow,
		InitialPipeSeg: c.InitialPipeSeg,
	}
}
