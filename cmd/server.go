package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgeflow/conductor/internal/backendstate"
	"github.com/edgeflow/conductor/internal/config"
	"github.com/edgeflow/conductor/internal/controller"
	"github.com/edgeflow/conductor/internal/controlplane"
	"github.com/edgeflow/conductor/internal/distributor"
	"github.com/edgeflow/conductor/internal/priority"
	"github.com/edgeflow/conductor/internal/scheduler"
	"github.com/edgeflow/conductor/internal/task"
	"github.com/edgeflow/conductor/internal/transport"
)

func serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the Backend, Distributor, Scheduler and Controller HTTP roles.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initialize(cmd); err != nil {
				return err
			}
			return runServer(cmd.Context())
		},
	}
}

// runServer wires every already-built internal package into the four
// HTTP roles named in spec.md §6 and blocks until ctx is cancelled or a
// signal arrives, then shuts every listener down within a fixed grace
// period.
func runServer(ctx context.Context) error {
	cfg := appConfig
	log := appLogger

	manifest, err := config.LoadManifest(cfg.ResourceManifestPath)
	if err != nil {
		return newCLIError(exitValidation, err)
	}
	registry := backendstate.New(manifest.Policies, manifest.Topology)

	store, err := distributor.Open(cfg.DistributorDBPath, log)
	if err != nil {
		return newCLIError(exitOrchestrator, fmt.Errorf("open distributor store: %w", err))
	}
	defer store.Close()

	newAgent := func(sourceID int) *scheduler.Agent {
		return scheduler.NewAgent(cfg.CloudDevice, cfg.LatencyConstraint, cfg.AIMDParams())
	}
	cp := controlplane.New(log, newAgent, controlplane.DefaultStartupPolicy(cfg.InitialPipeSeg))

	// resolver re-evaluates the assigned device for every stage from the
	// control plane's current plan; "start" is the synthetic stage
	// BuildPlan always pins to the source's own edge device.
	resolver := func(t *task.Task, stageID string) (string, error) {
		if stageID == "start" {
			return cfg.LocalDevice, nil
		}
		plan := cp.SchedulePlan(t.SourceID, cfg.LocalDevice, cfg.CloudDevice, t.DAG, nil)
		for _, s := range plan.Stages {
			if s.ID == stageID {
				return s.Service.ExecuteDevice, nil
			}
		}
		return "", fmt.Errorf("stage %q not scheduled for source %d", stageID, t.SourceID)
	}

	onTerminal := controller.NewDistributorTerminalHandler(store, cp)

	ctrl := controller.New(controller.Config{
		LocalDevice: cfg.LocalDevice,
		Processors:  map[string]controller.Processor{},
		Resolver:    resolver,
		Peers:       cfg.Peers,
		OnTerminal:  onTerminal,
		Log:         log,
	})

	queues := make(map[string]*priority.Queue, len(registry.EdgeNodes()))
	for _, node := range registry.EdgeNodes() {
		queues[node] = priority.NewQueue(cfg.PriorityLevels)
	}

	backendDeps := transport.BackendDeps{
		Registry:               registry,
		Results:                store,
		Queues:                 queues,
		VisualizationConfigDir: filepath.Dir(cfg.VisualizationConfigPath),
		LogFilePath:            cfg.LogFile,
	}

	servers := []*transport.Server{
		transport.NewServer(cfg.BackendAddr, transport.NewBackendRouter(backendDeps, log), log),
		transport.NewServer(cfg.DistributorAddr, transport.NewDistributorRouter(store, filepath.Dir(cfg.DistributorDBPath), log), log),
		transport.NewServer(cfg.SchedulerAddr, transport.NewSchedulerRouter(cp, log), log),
		transport.NewServer(cfg.ControllerAddr, transport.NewControllerRouter(ctrl, log), log),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	listenSignals(runCtx, func(sig os.Signal) {
		log.Info("shutting down", "signal", sig.String())
		cancel()
	})

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *transport.Server) {
			if err := s.Serve(); err != nil {
				errCh <- err
			}
		}(s)
	}

	<-runCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "err", err)
		}
	}

	select {
	case err := <-errCh:
		return newCLIError(exitOrchestrator, err)
	default:
		return nil
	}
}
