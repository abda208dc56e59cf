package priority

import (
	"sync"
	"time"

	"github.com/edgeflow/conductor/internal/task"
)

// SnapshotWindow is the default visibility window used by Snapshot. It is
// independently tunable from the estimator's EWMA window — nothing ties
// the two together.
const SnapshotWindow = 2 * time.Second

// levelQueue is a single FIFO of tasks at one priority level.
type levelQueue struct {
	items []*task.Task
}

func (q *levelQueue) pushBack(t *task.Task)  { q.items = append(q.items, t) }
func (q *levelQueue) empty() bool            { return len(q.items) == 0 }
func (q *levelQueue) popFront() *task.Task {
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

// Queue holds, for one node, one array of L FIFOs per service it hosts.
// enqueue/dequeue are safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	levels int
	byService map[string][]*levelQueue

	// SnapshotWindow overrides the default visibility window; zero means
	// use the package default.
	SnapshotWindow time.Duration
}

// NewQueue creates an empty per-node queue with L priority levels per
// service.
func NewQueue(levels int) *Queue {
	return &Queue{levels: levels, byService: make(map[string][]*levelQueue)}
}

func (q *Queue) levelsFor(service string) []*levelQueue {
	lqs, ok := q.byService[service]
	if !ok {
		lqs = make([]*levelQueue, q.levels)
		for i := range lqs {
			lqs[i] = &levelQueue{}
		}
		q.byService[service] = lqs
	}
	return lqs
}

// Enqueue records the priority-queue enter timestamp on t's stage-service
// record and places it at the tail of queue[service][priority].
func (q *Queue) Enqueue(service string, priorityLevel int, t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.RecordTimestamp("priority:"+service, false, time.Now())
	lqs := q.levelsFor(service)
	idx := clampLevel(priorityLevel, len(lqs))
	lqs[idx].pushBack(t)
}

// Dequeue returns the head of the highest-priority (lowest level index)
// non-empty FIFO for service, recording its exit timestamp, or nil if
// every level is empty.
func (q *Queue) Dequeue(service string) *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	lqs, ok := q.byService[service]
	if !ok {
		return nil
	}
	for _, lq := range lqs {
		if !lq.empty() {
			t := lq.popFront()
			t.RecordTimestamp("priority:"+service, true, time.Now())
			return t
		}
	}
	return nil
}

// Size returns the total number of queued tasks across every level for
// service.
func (q *Queue) Size(service string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	lqs, ok := q.byService[service]
	if !ok {
		return 0
	}
	n := 0
	for _, lq := range lqs {
		n += len(lq.items)
	}
	return n
}

// Snapshot is the read-only, cosmetic view of queue contents returned to
// operators: one array of task references per priority level, for every
// service. Snapshot never mutates the real queues.
type Snapshot map[string][][]*task.Task

// Snapshot returns the per-service, per-level view of every task whose
// total-end-time falls within window of (now - medianEndToEndLatency). A
// task with no recorded total-end-time is always included (it hasn't
// finished, so the window can't exclude it). window <= 0 uses
// SnapshotWindow (or the queue's own override).
func (q *Queue) Snapshot(now time.Time, medianEndToEndLatency, window time.Duration) Snapshot {
	if window <= 0 {
		window = q.SnapshotWindow
	}
	if window <= 0 {
		window = SnapshotWindow
	}
	center := now.Add(-medianEndToEndLatency)

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(Snapshot, len(q.byService))
	for service, lqs := range q.byService {
		levels := make([][]*task.Task, len(lqs))
		for i, lq := range lqs {
			filtered := make([]*task.Task, 0, len(lq.items))
			for _, t := range lq.items {
				pair, ok := t.Timestamps["total"]
				if !ok || pair.End.IsZero() {
					filtered = append(filtered, t)
					continue
				}
				delta := pair.End.Sub(center)
				if delta < 0 {
					delta = -delta
				}
				if delta <= window {
					filtered = append(filtered, t)
				}
			}
			levels[i] = filtered
		}
		out[service] = levels
	}
	return out
}

func clampLevel(level, levels int) int {
	if level < 0 {
		return 0
	}
	if level >= levels {
		return levels - 1
	}
	return level
}
