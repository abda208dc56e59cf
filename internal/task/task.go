// Package task implements the DAG pipeline's unit of work: the Task
// carrier, its Stage/Service graph, and the timestamp bookkeeping used by
// the scheduler and priority estimator downstream.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Service describes the inference binding at a single DAG stage.
type Service struct {
	Name          string `json:"name" yaml:"name"`
	Input         string `json:"input" yaml:"input"`
	Output        string `json:"output" yaml:"output"`
	ExecuteDevice string `json:"execute_device" yaml:"execute_device"`

	Priority int       `json:"priority" yaml:"priority"`
	Urgency  int       `json:"urgency" yaml:"urgency"`
	Content  any       `json:"content,omitempty" yaml:"content,omitempty"`
	Enter    time.Time `json:"-" yaml:"-"`
	Exit     time.Time `json:"-" yaml:"-"`
}

// Stage is one node of the Task's DAG.
type Stage struct {
	ID      string   `json:"id" yaml:"id"`
	Prev    []string `json:"prev" yaml:"prev"`
	Succ    []string `json:"succ" yaml:"succ"`
	Service Service  `json:"service" yaml:"service"`
}

// DAG is an ordered directed-acyclic graph of stages plus the synthetic
// entry set `_start`.
type DAG struct {
	Stages map[string]*Stage `json:"stages" yaml:"stages"`
	Start  []string          `json:"_start" yaml:"_start"`
}

// Clone returns a deep copy so per-task stage state (content, timestamps,
// priority) never aliases the DAG template it was materialised from.
func (d *DAG) Clone() *DAG {
	clone := &DAG{
		Stages: make(map[string]*Stage, len(d.Stages)),
		Start:  append([]string(nil), d.Start...),
	}
	for id, s := range d.Stages {
		cp := *s
		cp.Prev = append([]string(nil), s.Prev...)
		cp.Succ = append([]string(nil), s.Succ...)
		clone.Stages[id] = &cp
	}
	return clone
}

// TimePair is a paired start/end timestamp recorded under a tag.
type TimePair struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End-Start, or zero if either half is unset.
func (p TimePair) Duration() time.Duration {
	if p.Start.IsZero() || p.End.IsZero() {
		return 0
	}
	return p.End.Sub(p.Start)
}

// PriorityCoefficients parameterises the priority estimator for a task.
type PriorityCoefficients struct {
	ImportanceWeight float64 `json:"importance_weight"`
	UrgencyWeight    float64 `json:"urgency_weight"`
	PriorityLevels   int     `json:"priority_levels"`
	DeadlineSeconds  float64 `json:"deadline_seconds"`
}

// Task is the unit of work flowing through the pipeline: Generator ->
// Controller -> Processor[i] -> Distributor. At any moment it is owned
// exclusively by whichever component currently holds it.
type Task struct {
	SourceID int            `json:"source_id"`
	TaskID   int            `json:"task_id"`
	Metadata map[string]any `json:"metadata"`
	RawMetadata map[string]any `json:"raw_metadata"`
	DAG      *DAG           `json:"dag"`
	FilePath string         `json:"file_path"`

	Timestamps map[string]TimePair `json:"timestamps"`

	// SourceImportance is the operator-assigned static level for the
	// originating source, in [0, L-1]. It is set once, at source
	// registration time, from the source's own configuration — distinct
	// from PriorityCoefficients.ImportanceWeight, which arrives per-task
	// from the scheduling policy and only scales how much that importance
	// contributes to the final priority score (see DESIGN.md "Open
	// Questions resolved" #1). A policy with ImportanceWeight=0 cancels
	// importance out of the priority entirely while SourceImportance is
	// still recorded here for observability.
	SourceImportance      int                  `json:"source_importance"`
	PriorityCoefficients  PriorityCoefficients `json:"priority_coefficients"`

	FlowIndex int `json:"flow_index"`

	// TransmitCost holds, per stage id, the duration of the most recent
	// DAG-level transmit span recorded for that stage by the Controller.
	TransmitCost map[string]time.Duration `json:"transmit_cost,omitempty"`

	id uuid.UUID
}

// New constructs a Task, cloning dagTemplate so concurrent tasks from the
// same source never share stage state, and stamping the total-start
// timestamp is left to the caller (the Generator does it right before
// handing the Task to the Controller).
func New(sourceID, taskID int, dagTemplate *DAG, metadata, rawMetadata map[string]any, filePath string, importance int, coeffs PriorityCoefficients) *Task {
	return &Task{
		SourceID:             sourceID,
		TaskID:               taskID,
		Metadata:             metadata,
		RawMetadata:          rawMetadata,
		DAG:                  dagTemplate.Clone(),
		FilePath:             filePath,
		Timestamps:           make(map[string]TimePair),
		SourceImportance:     importance,
		PriorityCoefficients: coeffs,
		id:                   uuid.New(),
	}
}

// Key returns the system-wide primary key (source_id, task_id).
func (t *Task) Key() (int, int) { return t.SourceID, t.TaskID }

// CorrelationID is a stable per-task identifier for log correlation; it is
// not part of the wire format (the primary key already identifies a task
// system-wide) but is convenient for tracing a single Task's passage
// through logs emitted by different processes.
func (t *Task) CorrelationID() string { return t.id.String() }

// CurrentStage returns the stage at FlowIndex in the task's linearised
// pipeline view. Callers that need arbitrary-DAG access should use
// t.DAG.Stages directly; CurrentStage is a convenience for the common
// chain-pipeline case the scheduler and controller operate on.
func (t *Task) CurrentStage(order []string) *Stage {
	if t.FlowIndex < 0 || t.FlowIndex >= len(order) {
		return nil
	}
	return t.DAG.Stages[order[t.FlowIndex]]
}

// SetCurrentContent attaches the output of the current stage to that
// stage's Service.Content.
func (t *Task) SetCurrentContent(order []string, value any) {
	stage := t.CurrentStage(order)
	if stage == nil {
		return
	}
	stage.Service.Content = value
}

// GetLastContent returns the most recently produced content by walking the
// DAG in topological (BFS) order and returning the last non-nil content
// seen.
func (t *Task) GetLastContent() any {
	var last any
	_ = BFS(t.DAG, func(s *Stage) bool {
		if s.Service.Content != nil {
			last = s.Service.Content
		}
		return true
	})
	return last
}

// RecordTimestamp attaches a monotonic timestamp under tag. A second
// start without a matching end overrides the previous start
// (last-writer-wins); likewise for a second end. Unmatched pairs are
// never silently dropped — both halves are always stored even if the
// other half is still zero.
func (t *Task) RecordTimestamp(tag string, isEnd bool, at time.Time) {
	pair := t.Timestamps[tag]
	if isEnd {
		pair.End = at
	} else {
		pair.Start = at
	}
	t.Timestamps[tag] = pair
}

// ComputeDuration returns End-Start for tag, or zero if the pair is
// incomplete.
func (t *Task) ComputeDuration(tag string) time.Duration {
	return t.Timestamps[tag].Duration()
}

// SaveTransmitTime records the DAG-level rolling transmit duration as the
// given stage's transmit cost.
func (t *Task) SaveTransmitTime(stageID string, d time.Duration) {
	if t.TransmitCost == nil {
		t.TransmitCost = make(map[string]time.Duration)
	}
	t.TransmitCost[stageID] = d
}
