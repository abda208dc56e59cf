package controlplane

import (
	"github.com/edgeflow/conductor/internal/scheduler"
	"github.com/edgeflow/conductor/internal/task"
)

// DefaultStartupPolicy returns a StartupPolicy that assigns the first
// initialPipeSeg stages of the linearised pipeline to sourceDevice and
// the remainder to cloudDevice, bracketed by synthetic start/end stages —
// the same shape an AIMD agent would build on its first plan, but with no
// history dependence, so it is trivially deterministic and idempotent.
// If the DAG does not linearise into a single chain, it returns an
// all-cloud plan.
func DefaultStartupPolicy(initialPipeSeg int) StartupPolicy {
	return func(sourceDevice, cloudDevice string, dag *task.DAG) *scheduler.Plan {
		pipeline, err := task.ExtractPipeline(dag)
		if err != nil {
			return &scheduler.Plan{
				PipeSeg: 0,
				Stages: []task.Stage{
					{ID: "start", Service: task.Service{Name: "start", ExecuteDevice: sourceDevice}},
					{ID: "end", Service: task.Service{Name: "end", ExecuteDevice: cloudDevice}},
				},
			}
		}

		ordered := task.StagesByID(dag, pipeline)
		pipeSeg := initialPipeSeg
		if pipeSeg < 0 {
			pipeSeg = 0
		}
		if pipeSeg > len(ordered) {
			pipeSeg = len(ordered)
		}

		stages := make([]task.Stage, 0, len(ordered)+2)
		stages = append(stages, task.Stage{ID: "start", Service: task.Service{Name: "start", ExecuteDevice: sourceDevice}})
		for i, s := range ordered {
			device := cloudDevice
			if i < pipeSeg {
				device = sourceDevice
			}
			stage := *s
			stage.Service.ExecuteDevice = device
			stages = append(stages, stage)
		}
		stages = append(stages, task.Stage{ID: "end", Service: task.Service{Name: "end", ExecuteDevice: cloudDevice}})

		return &scheduler.Plan{PipeSeg: pipeSeg, Stages: stages}
	}
}
