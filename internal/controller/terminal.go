package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeflow/conductor/internal/task"
)

// ResultSink is the subset of the Distributor's Store a terminal handler
// needs: persist the finished task.
type ResultSink interface {
	Save(ctx context.Context, t *task.Task) error
}

// ScenarioSink is the subset of the control plane a terminal handler
// needs: forward the observed end-to-end delay to the owning scheduler
// agent.
type ScenarioSink interface {
	UpdateScenario(sourceID int, delaySeconds float64)
}

// NewDistributorTerminalHandler builds the TerminalHandler the spec's
// Generator/Controller flow ends on: save the finished task, then notify
// the scheduler of the observed delay so its next plan reacts to it.
func NewDistributorTerminalHandler(sink ResultSink, scenario ScenarioSink) TerminalHandler {
	return func(ctx context.Context, t *task.Task) error {
		t.RecordTimestamp("total", true, time.Now())
		if err := sink.Save(ctx, t); err != nil {
			return fmt.Errorf("terminal handler: save task: %w", err)
		}
		scenario.UpdateScenario(t.SourceID, t.ComputeDuration("total").Seconds())
		return nil
	}
}
