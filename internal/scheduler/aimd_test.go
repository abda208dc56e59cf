package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgeflow/conductor/internal/task"
)

func runSteps(a *Agent, delay float64, pipelineLen, n int) int {
	seg := 0
	for i := 0; i < n; i++ {
		a.UpdateScenario(delay)
		seg = a.step(pipelineLen)
	}
	return seg
}

func TestAIMD_LowDelayStrictlyIncreasesPipeSeg(t *testing.T) {
	// Scenario S3: N=4, C=1.0s, defaults, delays well below L=0.93.
	a := NewAgent("cloud", 1.0, DefaultAIMDParams())
	seg := runSteps(a, 0.5, 4, 40)
	require.Equal(t, 4, seg) // all-edge ceiling reached
}

func TestAIMD_HighDelayStrictlyDecreasesPipeSeg(t *testing.T) {
	params := DefaultAIMDParams()
	params.InitialPipeSeg = 4
	a := NewAgent("cloud", 1.0, params)

	// warm the initial pipe_seg via a no-op step before feeding high delay
	a.UpdateScenario(1.0)
	a.step(4)

	seg := runSteps(a, 2.0, 4, 60)
	require.Equal(t, 0, seg)
	require.GreaterOrEqual(t, seg, 0) // floor at zero, never negative
}

func TestAIMD_DelayWithinBandLeavesPipeSegUnchanged(t *testing.T) {
	params := DefaultAIMDParams()
	params.InitialPipeSeg = 2
	a := NewAgent("cloud", 1.0, params)

	var last int
	for i := 0; i < 50; i++ {
		a.UpdateScenario(1.0) // within [0.93, 1.07]
		last = a.step(4)
		require.Equal(t, 2, last)
	}
}

func TestAIMD_MonotonicDecreaseNeverNegative(t *testing.T) {
	params := DefaultAIMDParams()
	params.InitialPipeSeg = 1
	a := NewAgent("cloud", 1.0, params)
	a.UpdateScenario(1.0)
	a.step(4)

	for i := 0; i < 20; i++ {
		seg := runSteps(a, 2.0, 4, 1)
		require.GreaterOrEqual(t, seg, 0)
	}
}

func faceChainDAG() *task.DAG {
	return &task.DAG{
		Start: []string{"A"},
		Stages: map[string]*task.Stage{
			"A": {ID: "A", Succ: []string{"B"}, Service: task.Service{Name: "face_det", Input: "frame", Output: "bbox"}},
			"B": {ID: "B", Prev: []string{"A"}, Service: task.Service{Name: "face_recog", Input: "bbox", Output: "id"}},
		},
	}
}

func TestBuildPlan_BracketsWithStartAndEnd(t *testing.T) {
	a := NewAgent("cloud-1", 1.0, DefaultAIMDParams())
	dag := faceChainDAG()

	plan := a.BuildPlan(dag, "edge-1", nil)
	require.NotNil(t, plan)
	require.Equal(t, "start", plan.Stages[0].ID)
	require.Equal(t, "edge-1", plan.Stages[0].Service.ExecuteDevice)
	require.Equal(t, "end", plan.Stages[len(plan.Stages)-1].ID)
	require.Equal(t, "cloud-1", plan.Stages[len(plan.Stages)-1].Service.ExecuteDevice)
}

func TestBuildPlan_NotAChainFallsBackToLastPlan(t *testing.T) {
	a := NewAgent("cloud-1", 1.0, DefaultAIMDParams())
	branching := &task.DAG{
		Start: []string{"A"},
		Stages: map[string]*task.Stage{
			"A": {ID: "A", Succ: []string{"B", "C"}, Service: task.Service{Name: "a", Output: "x"}},
			"B": {ID: "B", Prev: []string{"A"}, Service: task.Service{Name: "b", Input: "x"}},
			"C": {ID: "C", Prev: []string{"A"}, Service: task.Service{Name: "c", Input: "x"}},
		},
	}
	lastPlan := &Plan{PipeSeg: 1, Stages: []task.Stage{{ID: "start"}}}
	got := a.BuildPlan(branching, "edge-1", lastPlan)
	require.Same(t, lastPlan, got)
}
