// Package priority implements the per-task priority estimator and the
// per-node, per-service leveled queues it feeds.
package priority

import (
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/edgeflow/conductor/internal/priority/urgencyhistory"
	"github.com/edgeflow/conductor/internal/task"
)

// Estimator computes urgency and priority level for a task, maintaining
// a shared, persistent UrgencyHistory per service.
type Estimator struct {
	history *urgencyhistory.Store
}

// NewEstimator roots urgency history files under historyDir.
func NewEstimator(historyDir string) *Estimator {
	return &Estimator{history: urgencyhistory.NewStore(historyDir)}
}

// CalculateUrgency derives the urgency level of t at serviceName given
// the current wall-clock time, and records the observation into the
// service's UrgencyHistory for future calls. Urgency is always in
// [0, L-1].
func (e *Estimator) CalculateUrgency(t *task.Task, serviceName string, now time.Time) (int, error) {
	levels := t.PriorityCoefficients.PriorityLevels
	deadline := t.PriorityCoefficients.DeadlineSeconds

	start, ok := t.Timestamps["total"]
	relRemaining := 0.0
	if ok && deadline > 0 {
		relRemaining = now.Sub(start.Start).Seconds() / deadline
	}

	before, err := e.history.Append(serviceName, relRemaining)
	if err != nil {
		return 0, err
	}

	if len(before) < levels-1 {
		return 0, nil
	}
	thresholds := chunkLastThresholds(before, levels-1)
	urgency := 0
	for _, v := range thresholds {
		if relRemaining >= v {
			urgency++
		} else {
			break
		}
	}
	return urgency, nil
}

// chunkLastThresholds splits sorted (already non-decreasing) history into
// n approximately-equal chunks and returns the last element of each —
// "chunk-last" equi-partitioning, grounded on the priority estimator's
// threshold derivation. Earlier chunks absorb the remainder so the last
// chunks are never larger than the first.
func chunkLastThresholds(history []float64, n int) []float64 {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	chunkSize, remainder := len(history)/n, len(history)%n
	out := make([]float64, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + chunkSize
		if i < remainder {
			end++
		}
		if end > len(history) {
			end = len(history)
		}
		if end == start {
			// Not enough history to fill this chunk; reuse the previous
			// threshold so comparisons stay non-decreasing.
			if len(out) > 0 {
				out = append(out, out[len(out)-1])
			} else {
				out = append(out, 0)
			}
			continue
		}
		out = append(out, history[end-1])
		start = end
	}
	// Guard non-decreasing order even if the history file was corrupted
	// out-of-band (teacher-style defensive re-clamp, see original source).
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			out[i] = out[i-1]
		}
	}
	return out
}

// CalculatePriority computes the priority level for t from its static
// source importance and the urgency measured at serviceName, rounding
// the weighted normalised score to the nearest integer level and
// clamping to [0, L-1].
func (e *Estimator) CalculatePriority(t *task.Task, serviceName string, now time.Time) (priority, urgency int, err error) {
	urgency, err = e.CalculateUrgency(t, serviceName, now)
	if err != nil {
		return 0, 0, err
	}

	coeffs := t.PriorityCoefficients
	levels := coeffs.PriorityLevels
	denom := float64(levels - 1)
	if levels <= 1 {
		denom = 1
	}

	importanceNorm := float64(t.SourceImportance) / denom
	urgencyNorm := float64(urgency) / denom

	maxScore := coeffs.ImportanceWeight + coeffs.UrgencyWeight
	score := importanceNorm*coeffs.ImportanceWeight + urgencyNorm*coeffs.UrgencyWeight
	normalised := 0.0
	if maxScore > 0 {
		normalised = score / maxScore
	}

	priority = int(math.Round(normalised * denom))
	priority = lo.Clamp(priority, 0, levels-1)
	return priority, urgency, nil
}
