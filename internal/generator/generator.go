// Package generator implements the per-source chunk generator: it pulls
// raw chunks from a datasource.Source, applies fps rate control, builds
// a Task per surviving chunk, and hands it to a Submitter (the
// Controller).
package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgeflow/conductor/internal/datasource"
	"github.com/edgeflow/conductor/internal/task"
)

// Submitter accepts a freshly built Task for dispatch. The Controller
// implements this.
type Submitter interface {
	Submit(ctx context.Context, t *task.Task) error
}

// Source describes the static, per-source configuration a Generator is
// built from.
type Source struct {
	SourceID             int
	SourceImportance     int
	PriorityCoefficients task.PriorityCoefficients
	Metadata             map[string]any
	RawMetadata          map[string]any
	DAGTemplate          *task.DAG
	TargetFPS            int
}

// Generator owns one source's pull/rate-control/submit loop.
type Generator struct {
	src       Source
	data      datasource.Source
	submitter Submitter
	log       *slog.Logger

	nextTaskID int
	rate       RateControl
	count      int

	stop chan struct{}
	done chan struct{}
}

// New constructs a Generator. rawFPS seeds the rate controller; it may
// be refined once the first chunk reports its own RawFPS.
func New(src Source, data datasource.Source, submitter Submitter, rawFPS int, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		src:       src,
		data:      data,
		submitter: submitter,
		log:       log,
		rate:      NewRateControl(rawFPS, src.TargetFPS),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run drives the pull/filter/submit loop until ctx is cancelled or Stop
// is called. It owns its goroutine's lifecycle via the stop channel, the
// teacher's convention for background loops.
func (g *Generator) Run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		default:
		}

		chunk, err := g.data.Next(ctx)
		if err != nil {
			g.log.WarnContext(ctx, "generator chunk pull failed", "source_id", g.src.SourceID, "error", err)
			continue
		}

		g.count++
		if chunk.RawFPS > 0 {
			g.rate = NewRateControl(chunk.RawFPS, g.src.TargetFPS)
		}
		if !g.rate.Keep(g.count) {
			continue
		}

		t := g.buildTask(chunk)
		if err := g.submitter.Submit(ctx, t); err != nil {
			g.log.WarnContext(ctx, "task submission failed", "source_id", g.src.SourceID, "task_id", t.TaskID, "error", err)
		}
	}
}

// Stop signals Run to exit and blocks until it has.
func (g *Generator) Stop() {
	close(g.stop)
	<-g.done
}

func (g *Generator) buildTask(chunk datasource.Chunk) *task.Task {
	taskID := g.nextTaskID
	g.nextTaskID++

	metadata := map[string]any{"chunk_seq": chunk.Seq}
	for k, v := range g.src.Metadata {
		metadata[k] = v
	}

	t := task.New(g.src.SourceID, taskID, g.src.DAGTemplate, metadata, g.src.RawMetadata,
		chunk.FilePath, g.src.SourceImportance, g.src.PriorityCoefficients)
	t.RecordTimestamp("total", false, time.Now())
	return t
}
