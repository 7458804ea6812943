package core

import "sync"

const (
	defaultQueueCapacity = 1024
	initialQueueCap      = 16
	compactMinCap        = 64 // Don't compact if capacity is less than this
	compactShrinkFactor  = 4  // Trigger compaction when len < cap/4
)

// readyQueue is the bounded FIFO holding ready tasks for one worker. Push is
// safe against concurrent producers (other workers dispatching ready tasks);
// Pop is only ever called by the owning worker goroutine. The signal channel
// lets that goroutine block while the queue is empty and be woken by a push
// or by a stop request.
type readyQueue struct {
	mu       sync.Mutex
	tasks    []*Task
	capacity int
	signal   chan struct{}
}

func newReadyQueue(capacity int) *readyQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	initial := initialQueueCap
	if capacity < initial {
		initial = capacity
	}
	return &readyQueue{
		tasks:    make([]*Task, 0, initial),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// TryPush appends task unless the queue is at capacity, waking the consumer
// on success.
func (q *readyQueue) TryPush(task *Task) bool {
	q.mu.Lock()
	if len(q.tasks) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	q.Wake()
	return true
}

// Pop removes the oldest ready task, if any.
func (q *readyQueue) Pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	task := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.maybeCompactLocked()

	return task, true
}

// Wake unblocks a consumer waiting on Signal without enqueuing anything.
func (q *readyQueue) Wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Signal is the channel the owning worker selects on while the queue is empty.
func (q *readyQueue) Signal() <-chan struct{} {
	return q.signal
}

func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *readyQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all queued tasks and releases their references.
func (q *readyQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = make([]*Task, 0, initialQueueCap)
}

func (q *readyQueue) maybeCompactLocked() {
	n := len(q.tasks)
	c := cap(q.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]*Task, 0, initialQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, initialQueueCap), n)

	newSlice := make([]*Task, n, newCap)
	copy(newSlice, q.tasks)
	q.tasks = newSlice
}
