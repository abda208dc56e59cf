// Package controller implements per-stage dispatch: invoke the bound
// Processor locally when the plan assigns the current stage to this
// device, otherwise forward the Task to the assigned device's
// Controller over HTTP. The remote endpoint is symmetric — forwarding
// and receiving share the same dispatch loop.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/edgeflow/conductor/internal/task"
)

// connectTimeout bounds only the TCP handshake; large result bodies
// stream without an overall request deadline.
const connectTimeout = 5 * time.Second

// Processor invokes the bound inference function for one stage.
type Processor interface {
	Process(ctx context.Context, stage *task.Stage, input any) (output any, err error)
}

// DeviceResolver re-evaluates the execute_device for a task's stage,
// called before every stage so a mid-pipeline plan change takes effect
// immediately. Concrete implementations typically delegate to a
// controlplane.ControlPlane's current Plan.
type DeviceResolver func(t *task.Task, stageID string) (device string, err error)

// TerminalHandler is invoked once a task has passed its last stage; it
// typically saves the task to the Distributor and forwards the observed
// delay to the Scheduler's scenario endpoint.
type TerminalHandler func(ctx context.Context, t *task.Task) error

// Controller dispatches one device's share of every task passing
// through it.
type Controller struct {
	localDevice string
	processors  map[string]Processor
	resolver    DeviceResolver
	peers       map[string]string // device -> controller base URL
	client      *resty.Client
	onTerminal  TerminalHandler
	log         *slog.Logger
}

// Config bundles a Controller's wiring.
type Config struct {
	LocalDevice string
	Processors  map[string]Processor
	Resolver    DeviceResolver
	Peers       map[string]string
	OnTerminal  TerminalHandler
	Log         *slog.Logger
}

// New constructs a Controller. The resty client uses a short connect
// timeout with no overall request timeout, so large result bodies can
// stream without being cut off mid-transfer.
func New(cfg Config) *Controller {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	client := resty.New().
		SetTimeout(0).
		SetTransport(&http.Transport{
			DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
		})
	return &Controller{
		localDevice: cfg.LocalDevice,
		processors:  cfg.Processors,
		resolver:    cfg.Resolver,
		peers:       cfg.Peers,
		client:      client,
		onTerminal:  cfg.OnTerminal,
		log:         log,
	}
}

// Submit implements generator.Submitter: it starts (or resumes) this
// task's dispatch loop.
func (c *Controller) Submit(ctx context.Context, t *task.Task) error {
	return c.dispatch(ctx, t)
}

// Receive is called when a forwarded task arrives at this device: it
// closes out the transmit span before resuming dispatch.
func (c *Controller) Receive(ctx context.Context, t *task.Task) error {
	t.RecordTimestamp("transmit", true, time.Now())
	if order, err := task.ExtractPipeline(t.DAG); err == nil {
		if stage := t.CurrentStage(order); stage != nil {
			t.SaveTransmitTime(stage.ID, t.ComputeDuration("transmit"))
		}
	}
	return c.dispatch(ctx, t)
}

func (c *Controller) dispatch(ctx context.Context, t *task.Task) error {
	for {
		order, err := task.ExtractPipeline(t.DAG)
		if err != nil {
			return fmt.Errorf("controller: linearise pipeline: %w", err)
		}

		stage := t.CurrentStage(order)
		if stage == nil {
			return c.onTerminal(ctx, t)
		}

		device, err := c.resolver(t, stage.ID)
		if err != nil {
			return fmt.Errorf("controller: resolve device for stage %q: %w", stage.ID, err)
		}
		stage.Service.ExecuteDevice = device

		if device == c.localDevice {
			if err := c.runLocal(ctx, t, order, stage); err != nil {
				return err
			}
			continue
		}
		return c.forward(ctx, t, device)
	}
}

func (c *Controller) runLocal(ctx context.Context, t *task.Task, order []string, stage *task.Stage) error {
	proc, ok := c.processors[stage.Service.Name]
	if !ok {
		return fmt.Errorf("controller: no processor registered for service %q", stage.Service.Name)
	}

	input := t.GetLastContent()
	stage.Service.Enter = time.Now()
	t.RecordTimestamp(stage.ID, false, stage.Service.Enter)
	output, err := proc.Process(ctx, stage, input)
	stage.Service.Exit = time.Now()
	t.RecordTimestamp(stage.ID, true, stage.Service.Exit)
	if err != nil {
		return fmt.Errorf("controller: process stage %q: %w", stage.ID, err)
	}

	t.SetCurrentContent(order, output)
	t.FlowIndex++
	return nil
}

func (c *Controller) forward(ctx context.Context, t *task.Task, device string) error {
	base, ok := c.peers[device]
	if !ok {
		return fmt.Errorf("controller: no known endpoint for device %q", device)
	}

	t.RecordTimestamp("transmit", false, time.Now())
	resp, err := c.client.R().SetContext(ctx).SetBody(t).Post(base + "/task")
	if err != nil {
		return fmt.Errorf("controller: forward task to %q: %w", device, err)
	}
	if resp.IsError() {
		return fmt.Errorf("controller: forward task to %q: status %s", device, resp.Status())
	}
	c.log.DebugContext(ctx, "forwarded task", "device", device, "source_id", t.SourceID, "task_id", t.TaskID)
	return nil
}
