package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgeflow/conductor/internal/task"
)

func newEstimator(t *testing.T) *Estimator {
	t.Helper()
	return NewEstimator(t.TempDir())
}

func taskWithHistory(levels int, importance int, wi, wu, deadline float64, start time.Time) *task.Task {
	tk := task.New(1, 1, &task.DAG{Stages: map[string]*task.Stage{}}, nil, nil, "", importance, task.PriorityCoefficients{
		ImportanceWeight: wi, UrgencyWeight: wu, PriorityLevels: levels, DeadlineSeconds: deadline,
	})
	tk.RecordTimestamp("total", false, start)
	return tk
}

func TestChunkLastThresholds_NineIntoNine(t *testing.T) {
	history := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	thresholds := chunkLastThresholds(history, 9)
	require.Equal(t, history, thresholds)
}

func TestCalculatePriority_S5(t *testing.T) {
	// Scenario S5: L=10, w_i=w_u=1, importance=4, 9 pre-existing history
	// values 0.1..0.9, remaining=0.55 at call time.
	e := newEstimator(t)
	now := time.Now()
	deadline := 100.0
	start := now.Add(-time.Duration(0.55*deadline) * time.Second)

	for _, v := range []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9} {
		_, err := e.history.Append("svc", v)
		require.NoError(t, err)
	}

	tk := taskWithHistory(10, 4, 1, 1, deadline, start)
	priority, urgency, err := e.CalculatePriority(tk, "svc", now)
	require.NoError(t, err)
	require.Equal(t, 5, urgency) // count of thresholds <= 0.55 among [0.1..0.9]

	// normalised_score = (4/9 + 5/9)/2 = 1/2; priority = round(1/2*9) = round(4.5) = 5
	require.Equal(t, 5, priority)
	require.GreaterOrEqual(t, priority, 0)
	require.Less(t, priority, 10)
}

func TestCalculateUrgency_InsufficientHistoryIsZero(t *testing.T) {
	e := newEstimator(t)
	tk := taskWithHistory(10, 0, 1, 1, 100, time.Now())
	urgency, err := e.CalculateUrgency(tk, "fresh-service", time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, urgency)
}

func TestUrgency_AlwaysInRange(t *testing.T) {
	e := newEstimator(t)
	now := time.Now()
	for i := 0; i < 50; i++ {
		tk := taskWithHistory(5, 2, 1, 1, 10, now.Add(-time.Duration(i)*time.Second))
		urgency, err := e.CalculateUrgency(tk, "bounded-service", now)
		require.NoError(t, err)
		require.GreaterOrEqual(t, urgency, 0)
		require.LessOrEqual(t, urgency, 4)
	}
}

func TestCalculatePriority_Deterministic(t *testing.T) {
	e1 := newEstimator(t)
	e2 := newEstimator(t)
	now := time.Now()
	start := now.Add(-5 * time.Second)

	tk1 := taskWithHistory(4, 2, 1, 1, 10, start)
	tk2 := taskWithHistory(4, 2, 1, 1, 10, start)

	p1, u1, err := e1.CalculatePriority(tk1, "svc", now)
	require.NoError(t, err)
	p2, u2, err := e2.CalculatePriority(tk2, "svc", now)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
	require.Equal(t, u1, u2)
}
