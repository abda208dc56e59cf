package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgeflow/conductor/internal/task"
)

func newQueueTask(id int) *task.Task {
	return task.New(1, id, &task.DAG{Stages: map[string]*task.Stage{}}, nil, nil, "", 0, task.PriorityCoefficients{})
}

func TestQueue_DequeueReturnsHighestPriorityFirst(t *testing.T) {
	q := NewQueue(3)
	low := newQueueTask(1)
	high := newQueueTask(2)
	mid := newQueueTask(3)

	q.Enqueue("svc", 2, low)
	q.Enqueue("svc", 0, high)
	q.Enqueue("svc", 1, mid)

	require.Same(t, high, q.Dequeue("svc"))
	require.Same(t, mid, q.Dequeue("svc"))
	require.Same(t, low, q.Dequeue("svc"))
	require.Nil(t, q.Dequeue("svc"))
}

func TestQueue_FIFOWithinLevel(t *testing.T) {
	q := NewQueue(2)
	first := newQueueTask(1)
	second := newQueueTask(2)

	q.Enqueue("svc", 0, first)
	q.Enqueue("svc", 0, second)

	require.Same(t, first, q.Dequeue("svc"))
	require.Same(t, second, q.Dequeue("svc"))
}

func TestQueue_EnqueueRecordsEnterDequeueRecordsExit(t *testing.T) {
	q := NewQueue(2)
	tk := newQueueTask(1)
	q.Enqueue("svc", 0, tk)

	pair := tk.Timestamps["priority:svc"]
	require.False(t, pair.Start.IsZero())
	require.True(t, pair.End.IsZero())

	q.Dequeue("svc")
	pair = tk.Timestamps["priority:svc"]
	require.False(t, pair.End.IsZero())
}

func TestQueue_SizeCountsAcrossLevels(t *testing.T) {
	q := NewQueue(3)
	q.Enqueue("svc", 0, newQueueTask(1))
	q.Enqueue("svc", 2, newQueueTask(2))
	require.Equal(t, 2, q.Size("svc"))
}

func TestQueue_SnapshotIsCosmetic(t *testing.T) {
	q := NewQueue(2)
	now := time.Now()

	inWindow := newQueueTask(1)
	inWindow.RecordTimestamp("total", true, now)
	outOfWindow := newQueueTask(2)
	outOfWindow.RecordTimestamp("total", true, now.Add(-time.Hour))

	q.Enqueue("svc", 0, inWindow)
	q.Enqueue("svc", 0, outOfWindow)

	snap := q.Snapshot(now, 0, SnapshotWindow)
	require.Len(t, snap["svc"][0], 1)
	require.Same(t, inWindow, snap["svc"][0][0])

	// The real queue is untouched: both tasks are still dequeuable.
	require.Equal(t, 2, q.Size("svc"))
}

func TestQueue_SnapshotIncludesUnfinishedTasksRegardlessOfWindow(t *testing.T) {
	q := NewQueue(1)
	unfinished := newQueueTask(1)
	q.Enqueue("svc", 0, unfinished)

	snap := q.Snapshot(time.Now(), 0, SnapshotWindow)
	require.Len(t, snap["svc"][0], 1)
}
