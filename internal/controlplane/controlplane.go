// Package controlplane wires source_id to scheduler agent, routes
// scenario and resource updates, and keeps the resource snapshot table
// read-only observers poll.
package controlplane

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/edgeflow/conductor/internal/scheduler"
	"github.com/edgeflow/conductor/internal/task"
)

// ResourceDescriptor is an opaque per-device resource report (CPU,
// memory, queue depth, …); the control plane only stores and forwards
// it, never interprets its fields.
type ResourceDescriptor map[string]any

// AgentFactory builds a fresh scheduler agent for a newly seen source.
type AgentFactory func(sourceID int) *scheduler.Agent

// StartupPolicy computes the schedule used before any agent history
// exists. It must be a deterministic, idempotent function of its inputs.
type StartupPolicy func(sourceDevice, cloudDevice string, dag *task.DAG) *scheduler.Plan

// ControlPlane is the shared singleton gluing scheduler agents,
// per-source plans, and the resource snapshot table together.
type ControlPlane struct {
	log           *slog.Logger
	newAgent      AgentFactory
	startupPolicy StartupPolicy

	mu     sync.Mutex
	agents map[int]*scheduler.Agent

	resources atomic.Pointer[map[string]ResourceDescriptor]
}

// New constructs a ControlPlane. newAgent and startupPolicy must not be
// nil.
func New(log *slog.Logger, newAgent AgentFactory, startupPolicy StartupPolicy) *ControlPlane {
	if log == nil {
		log = slog.Default()
	}
	cp := &ControlPlane{log: log, newAgent: newAgent, startupPolicy: startupPolicy, agents: make(map[int]*scheduler.Agent)}
	empty := make(map[string]ResourceDescriptor)
	cp.resources.Store(&empty)
	return cp
}

// RegisterSource registers a scheduler agent on first sight of sourceID;
// subsequent calls for the same source are no-ops.
func (cp *ControlPlane) RegisterSource(sourceID int) *scheduler.Agent {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if a, ok := cp.agents[sourceID]; ok {
		return a
	}
	a := cp.newAgent(sourceID)
	cp.agents[sourceID] = a
	return a
}

// agent returns the registered agent for sourceID, or nil.
func (cp *ControlPlane) agent(sourceID int) *scheduler.Agent {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.agents[sourceID]
}

// UpdateScenario forwards one completed task's observed delay to the
// owning agent. If no agent is registered for the task's source, the
// update is dropped with a warning.
func (cp *ControlPlane) UpdateScenario(sourceID int, delaySeconds float64) {
	a := cp.agent(sourceID)
	if a == nil {
		cp.log.Warn("scheduler agent not registered", "source_id", sourceID)
		return
	}
	a.UpdateScenario(delaySeconds)
}

// UpdateResource records device's resource descriptor in the snapshot
// table and logs the update. Registered agents are not notified: the
// scheduler package's agents have no resource-update method, and the
// descriptor is only visible through ResourceSnapshot.
func (cp *ControlPlane) UpdateResource(device string, resource ResourceDescriptor) {
	cp.mu.Lock()
	current := cp.resources.Load()
	next := make(map[string]ResourceDescriptor, len(*current)+1)
	for k, v := range *current {
		next[k] = v
	}
	next[device] = resource
	cp.resources.Store(&next)
	cp.mu.Unlock()

	cp.log.Info("resource update recorded", "device", device)
}

// ResourceSnapshot returns a read-only copy-on-read view of the resource
// table, safe to range over concurrently with further UpdateResource
// calls.
func (cp *ControlPlane) ResourceSnapshot() map[string]ResourceDescriptor {
	return *cp.resources.Load()
}

// SchedulePlan returns the current plan for sourceID's dag, falling back
// to the deterministic startup policy when no agent is registered yet or
// the agent returns no plan (its pipeline linearisation failed and
// lastPlan was nil).
func (cp *ControlPlane) SchedulePlan(sourceID int, sourceDevice, cloudDevice string, dag *task.DAG, lastPlan *scheduler.Plan) *scheduler.Plan {
	a := cp.agent(sourceID)
	if a == nil {
		return cp.startupPolicy(sourceDevice, cloudDevice, dag)
	}
	plan := a.BuildPlan(dag, sourceDevice, lastPlan)
	if plan == nil {
		return cp.startupPolicy(sourceDevice, cloudDevice, dag)
	}
	return plan
}
