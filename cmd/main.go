package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/edgeflow/conductor/internal/build"
	"github.com/edgeflow/conductor/internal/config"
	"github.com/edgeflow/conductor/internal/logger"
)

var (
	cfgFile string
	quiet   bool

	appConfig *config.Config
	appLogger *slog.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "conductor",
		Short: "Edge/cloud workload orchestrator for streaming sensor pipelines.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.config/conductor/conductor.yaml)")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress console logging")

	root.AddCommand(
		serverCmd(),
		installCmd(),
		uninstallCmd(),
		dagCmd(),
		sourceListCmd(),
		policyCmd(),
		priorityInfoCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// initialize loads Config and builds the shared logger. It is called at
// the top of every subcommand's RunE, mirroring the teacher's
// cmd/main.go initialize(cmd) step.
func initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Printf("configuration load failed: %v", err)
		return newCLIError(exitValidation, err)
	}
	appConfig = cfg

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return newCLIError(exitValidation, err)
	}
	format := logger.FormatText
	if cfg.LogFormat == "json" {
		format = logger.FormatJSON
	}

	l, _, err := logger.New(logger.Args{
		Level:   level,
		Format:  format,
		Quiet:   quiet,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return newCLIError(exitOrchestrator, err)
	}
	appLogger = l
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the conductor version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s %s\n", build.AppName, build.Version)
			return nil
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
}
