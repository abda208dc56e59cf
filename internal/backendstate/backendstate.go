// Package backendstate holds the operator-facing bookkeeping behind the
// Backend HTTP role: the policy list, the DAG/datasource registries, and
// the install/query state machine. None of it talks to a real cluster or
// sensor endpoint — those collaborators stay behind the narrow
// orchestratordriver.Driver and datasource.Source interfaces, wired in by
// whatever binds this package to a concrete deployment.
package backendstate

import (
	"fmt"
	"sync"

	"github.com/edgeflow/conductor/internal/task"
)

// Policy is one selectable scheduling policy, named and looked up by id.
type Policy struct {
	PolicyID   string `json:"policy_id"`
	PolicyName string `json:"policy_name"`
}

// InstallState mirrors the install/uninstall state machine guarding
// concurrent /install and /uninstall requests.
type InstallState string

const (
	InstallStateIdle      InstallState = "idle"
	InstallStateInstalled InstallState = "install"
	InstallStateUninstall InstallState = "uninstall"
)

// QueryState mirrors the result-stream open/close/disabled state machine.
type QueryState string

const (
	QueryStateOpen     QueryState = "open"
	QueryStateClose    QueryState = "close"
	QueryStateDisabled QueryState = "disabled"
)

// SourceInstall is one entry of an /install request body: a source id
// plus which DAG and which node selection it was deployed with.
type SourceInstall struct {
	ID           int      `json:"id"`
	DAGSelected  string   `json:"dag_selected"`
	NodeSelected []string `json:"node_selected"`
}

// Registry is the Backend role's in-memory state. It is safe for
// concurrent use; callers needing durability across restarts persist
// ResourceManifest themselves (spec.md's `resources.yaml`).
type Registry struct {
	mu sync.RWMutex

	policies []Policy
	dags     map[string]*task.DAG

	datasources map[string]map[string]any // source_label -> parsed config

	installState     InstallState
	installedPolicy  string
	installedSources []SourceInstall
	queryState       QueryState
	querySourceLabel string

	// serviceTopology maps a node (edge device or cloud device) to the
	// service names installed on it, feeding /services, /edge_nodes and
	// /priority_info.
	serviceTopology map[string][]string
	sourceList      []int
	priorityLevels  int
	systemParams    map[string]any

	unreadEvents []Event
	fullEvents   []Event
}

// Topology configures the static node/service/source layout the Backend
// role reports; it rarely changes after startup.
type Topology struct {
	ServiceTopology map[string][]string `yaml:"service_topology"`
	SourceList      []int               `yaml:"source_list"`
	PriorityLevels  int                 `yaml:"priority_levels"`
	SystemParams    map[string]any      `yaml:"system_params"`
}

// New constructs an empty Registry seeded with the given policy list and
// static topology.
func New(policies []Policy, topo Topology) *Registry {
	return &Registry{
		policies:        policies,
		dags:            make(map[string]*task.DAG),
		datasources:     make(map[string]map[string]any),
		installState:    InstallStateIdle,
		queryState:      QueryStateDisabled,
		serviceTopology: topo.ServiceTopology,
		sourceList:      topo.SourceList,
		priorityLevels:  topo.PriorityLevels,
		systemParams:    topo.SystemParams,
	}
}

// Services returns every node's installed service names.
func (r *Registry) Services() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.serviceTopology))
	for node, svcs := range r.serviceTopology {
		out[node] = append([]string(nil), svcs...)
	}
	return out
}

// EdgeNodes lists every node name known to the topology.
func (r *Registry) EdgeNodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := make([]string, 0, len(r.serviceTopology))
	for node := range r.serviceTopology {
		nodes = append(nodes, node)
	}
	return nodes
}

// SourceList returns every configured source id.
func (r *Registry) SourceList() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int(nil), r.sourceList...)
}

// PriorityLevels returns the configured number of priority levels (L).
func (r *Registry) PriorityLevels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priorityLevels
}

// SystemParameters returns the static system parameter map reported at
// GET /system_parameters.
func (r *Registry) SystemParameters() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.systemParams))
	for k, v := range r.systemParams {
		out[k] = v
	}
	return out
}

// Policies returns every configured scheduling policy.
func (r *Registry) Policies() []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Policy(nil), r.policies...)
}

// UpsertDAG validates and stores a named DAG template.
func (r *Registry) UpsertDAG(name string, dag *task.DAG) error {
	if err := task.CheckDAG(dag); err != nil {
		return fmt.Errorf("backendstate: invalid dag %q: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dags[name] = dag
	return nil
}

// DeleteDAG removes a named DAG template; it is not an error to delete
// one that does not exist.
func (r *Registry) DeleteDAG(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dags, name)
}

// DAG looks up a named DAG template.
func (r *Registry) DAG(name string) (*task.DAG, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dags[name]
	return d, ok
}

// DAGNames lists every registered DAG template name.
func (r *Registry) DAGNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dags))
	for name := range r.dags {
		names = append(names, name)
	}
	return names
}

// UpsertDatasource stores a parsed source-config document under its
// source label.
func (r *Registry) UpsertDatasource(label string, cfg map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasources[label] = cfg
}

// DeleteDatasource removes a source-config document.
func (r *Registry) DeleteDatasource(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.datasources, label)
}

// Datasources returns every registered source label and its config.
func (r *Registry) Datasources() map[string]map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]any, len(r.datasources))
	for k, v := range r.datasources {
		out[k] = v
	}
	return out
}

// Install records a successful install: a policy id plus the set of
// installed sources, transitioning install state to "install".
func (r *Registry) Install(policyID string, sources []SourceInstall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installState = InstallStateInstalled
	r.installedPolicy = policyID
	r.installedSources = sources
}

// Uninstall clears the install record, transitioning install state to
// "uninstall".
func (r *Registry) Uninstall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installState = InstallStateUninstall
	r.installedPolicy = ""
	r.installedSources = nil
}

// InstallState reports the current install/uninstall state and, when
// installed, the sources that were deployed.
func (r *Registry) InstallState() (InstallState, []SourceInstall) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.installState, append([]SourceInstall(nil), r.installedSources...)
}

// OpenQuery transitions the result-stream state to "open" for one source
// label; a second open call with a different label is rejected by the
// HTTP handler before reaching here (one open stream at a time).
func (r *Registry) OpenQuery(sourceLabel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryState = QueryStateOpen
	r.querySourceLabel = sourceLabel
}

// CloseQuery transitions the result-stream state to "close".
func (r *Registry) CloseQuery() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryState = QueryStateClose
	r.querySourceLabel = ""
}

// QueryState reports the current result-stream state and source label.
func (r *Registry) QueryState() (QueryState, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queryState, r.querySourceLabel
}

// Event is one alert-style notification surfaced at /event_result
// (unread, drained once) and /event_detail (the full, separately drained
// history), grounded on the original backend's event_results/
// full_event_results split. No producer is wired into this module — it
// has no ML-inference/anomaly-detection layer, which spec.md excludes —
// but the registry still exposes the queue for an external collaborator
// to feed.
type Event struct {
	SourceID int    `json:"source_id"`
	TaskID   int    `json:"task_id"`
	Message  string `json:"message"`
}

// RecordEvent appends ev to both the unread queue and the full history.
func (r *Registry) RecordEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreadEvents = append(r.unreadEvents, ev)
	r.fullEvents = append(r.fullEvents, ev)
}

// DrainUnreadEvents returns and clears every event not yet delivered to
// an /event_result poller.
func (r *Registry) DrainUnreadEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.unreadEvents
	r.unreadEvents = nil
	return out
}

// DrainAllEvents returns and clears the full event history, independent
// of whether each event was already delivered via DrainUnreadEvents.
func (r *Registry) DrainAllEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.fullEvents
	r.fullEvents = nil
	return out
}
