// Package scheduler implements the per-source adaptive (AIMD) scheduler:
// an agent that nudges how many leading pipeline stages execute on the
// source's edge device versus the cloud device, reacting to a smoothed
// end-to-end delay signal.
package scheduler

import (
	"math"
	"sync"

	"github.com/edgeflow/conductor/internal/task"
)

// AIMDParams are the tunable constants of the additive-increase/
// multiplicative-decrease control law. All have sane defaults via
// DefaultAIMDParams.
type AIMDParams struct {
	Hysteresis     float64 // fraction of the latency target, e.g. 0.07
	BreachNeeded   int     // consecutive breaches required before acting
	CooldownSteps  int     // adjustment opportunities to wait after acting
	DecreaseFactor float64 // multiplicative decrease factor in (0,1]
	IncreaseRate   float64 // additive increase per eligible breach, may be < 1
	EWMAAlpha      float64 // smoothing factor, oldest to newest
	HistoryWindow  int     // bounded delay history length
	InitialPipeSeg int     // starting pipe_seg, clamped to [0, N] on first plan
}

// DefaultAIMDParams returns the control law's default tuning.
func DefaultAIMDParams() AIMDParams {
	return AIMDParams{
		Hysteresis:     0.07,
		BreachNeeded:   2,
		CooldownSteps:  1,
		DecreaseFactor: 0.5,
		IncreaseRate:   1.0,
		EWMAAlpha:      0.3,
		HistoryWindow:  20,
	}
}

// Agent is the per-source adaptive scheduler. A single Agent owns one
// source's pipe_seg and delay history; it is safe for concurrent use.
type Agent struct {
	cloudDevice       string
	latencyConstraint float64 // seconds
	params            AIMDParams

	mu               sync.Mutex
	history          []float64 // bounded ring, oldest first
	pipeSeg          int
	pipeSegInit      bool
	sinceLastAdjust  int
	highBreachCount  int
	lowBreachCount   int
	increaseAccum    float64
}

// NewAgent constructs an Agent for one source. latencyConstraint is the
// operator's target end-to-end delay in seconds.
func NewAgent(cloudDevice string, latencyConstraint float64, params AIMDParams) *Agent {
	return &Agent{
		cloudDevice:       cloudDevice,
		latencyConstraint: latencyConstraint,
		params:            params,
	}
}

// UpdateScenario appends one observed end-to-end delay (seconds) to the
// agent's bounded history, dropping the oldest sample beyond
// HistoryWindow. Negative delays are ignored.
func (a *Agent) UpdateScenario(delay float64) {
	if delay < 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	window := a.params.HistoryWindow
	if window <= 0 {
		window = 20
	}
	a.history = append(a.history, delay)
	if len(a.history) > window {
		a.history = a.history[len(a.history)-window:]
	}
}

func (a *Agent) smoothedDelay() (float64, bool) {
	if len(a.history) == 0 {
		return 0, false
	}
	alpha := a.params.EWMAAlpha
	var val float64
	started := false
	for _, d := range a.history {
		if !started {
			val = d
			started = true
			continue
		}
		val = alpha*d + (1-alpha)*val
	}
	return val, true
}

// step runs one AIMD adjustment opportunity against pipelineLen, mutating
// pipe_seg according to the smoothed delay. It returns the resulting
// pipe_seg.
func (a *Agent) step(pipelineLen int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	minEdge, maxEdge := 0, pipelineLen
	if !a.pipeSegInit {
		a.pipeSeg = clampInt(a.params.InitialPipeSeg, minEdge, maxEdge)
		a.pipeSegInit = true
	}

	delay, ok := a.smoothedDelay()
	if !ok || pipelineLen == 0 {
		return a.pipeSeg
	}

	upper := a.latencyConstraint * (1 + a.params.Hysteresis)
	lower := a.latencyConstraint * (1 - a.params.Hysteresis)

	breachNeeded := a.params.BreachNeeded
	if breachNeeded <= 0 {
		breachNeeded = 1
	}

	adjusted := false
	if a.sinceLastAdjust < a.params.CooldownSteps {
		a.highBreachCount = 0
		a.lowBreachCount = 0
	} else {
		switch {
		case delay > upper && a.pipeSeg > minEdge:
			a.highBreachCount++
			a.lowBreachCount = 0
			if a.highBreachCount >= breachNeeded {
				newSeg := int(math.Floor(float64(a.pipeSeg) * clampFloat(a.params.DecreaseFactor, 0, 1)))
				if newSeg == a.pipeSeg {
					newSeg = a.pipeSeg - 1 // guarantee a decrease of at least 1
				}
				a.pipeSeg = clampInt(newSeg, minEdge, maxEdge)
				a.increaseAccum = 0
				a.highBreachCount = 0
				adjusted = true
			}
		case delay < lower && a.pipeSeg < maxEdge:
			a.lowBreachCount++
			a.highBreachCount = 0
			if a.lowBreachCount >= breachNeeded {
				a.increaseAccum += math.Max(0, a.params.IncreaseRate)
				inc := int(a.increaseAccum)
				if inc >= 1 {
					a.pipeSeg = clampInt(a.pipeSeg+inc, minEdge, maxEdge)
					a.increaseAccum -= float64(inc)
					a.lowBreachCount = 0
					adjusted = true
				}
			}
		default:
			a.highBreachCount = 0
			a.lowBreachCount = 0
		}
	}

	if adjusted {
		a.sinceLastAdjust = 0
	} else {
		a.sinceLastAdjust++
	}
	return a.pipeSeg
}

// Plan is a schedule decision: the ordered stage IDs with their assigned
// execute device, bracketed by synthetic start/end stages.
type Plan struct {
	PipeSeg int
	Stages  []task.Stage
}

// BuildPlan linearises dag's pipeline and assigns the first pipe_seg
// stages (after one AIMD step) to sourceEdgeDevice, the remainder to the
// agent's cloud device, prepending a synthetic edge "start" stage and
// appending a synthetic cloud "end" stage. If the DAG does not linearise
// into a single chain, BuildPlan returns lastPlan unchanged rather than
// erroring — failure semantics fall back to the current plan.
func (a *Agent) BuildPlan(dag *task.DAG, sourceEdgeDevice string, lastPlan *Plan) *Plan {
	pipeline, err := task.ExtractPipeline(dag)
	if err != nil {
		return lastPlan
	}

	pipeSeg := a.step(len(pipeline))
	ordered := task.StagesByID(dag, pipeline)

	stages := make([]task.Stage, 0, len(ordered)+2)
	stages = append(stages, task.Stage{ID: "start", Service: task.Service{Name: "start", ExecuteDevice: sourceEdgeDevice}})
	for i, s := range ordered {
		device := a.cloudDevice
		if i < pipeSeg {
			device = sourceEdgeDevice
		}
		stage := *s
		stage.Service.ExecuteDevice = device
		stages = append(stages, stage)
	}
	stages = append(stages, task.Stage{ID: "end", Service: task.Service{Name: "end", ExecuteDevice: a.cloudDevice}})

	return &Plan{PipeSeg: pipeSeg, Stages: stages}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
