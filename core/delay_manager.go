package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// delayedTask is a root task scheduled for submission in the future.
type delayedTask struct {
	runAt time.Time
	task  *Task
	index int // for heap interface
}

// delayedTaskHeap implements heap.Interface ordered by release time.
type delayedTaskHeap []*delayedTask

func (h delayedTaskHeap) Len() int           { return len(h) }
func (h delayedTaskHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedTaskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedTaskHeap) Push(x any) {
	n := len(*h)
	item := x.(*delayedTask)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedTaskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *delayedTaskHeap) Peek() *delayedTask {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayManager holds root tasks until their release time and then hands them
// to a release function (the scheduler's dispatch). A single goroutine sleeps
// until the earliest release; adding an earlier task wakes it up to
// recalculate.
type DelayManager struct {
	pq      delayedTaskHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	release func(*Task)
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewDelayManager creates a delay manager releasing expired tasks through
// release.
func NewDelayManager(release func(*Task)) *DelayManager {
	ctx, cancel := context.WithCancel(context.Background())
	dm := &DelayManager{
		pq:      make(delayedTaskHeap, 0),
		wakeup:  make(chan struct{}, 1),
		release: release,
		ctx:     ctx,
		cancel:  cancel,
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

// AddDelayedTask schedules task for release after delay.
func (dm *DelayManager) AddDelayedTask(task *Task, delay time.Duration) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := &delayedTask{
		runAt: time.Now().Add(delay),
		task:  task,
	}
	heap.Push(&dm.pq, item)

	// Only a new earliest release changes what the loop waits for.
	if item.index == 0 {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
}

func (dm *DelayManager) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		next, ok := dm.nextRelease()
		if !ok {
			// No tasks, wait until something is added.
			next = 1000 * time.Hour
		}

		timer.Reset(next)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.releaseExpired()
		case <-dm.wakeup:
			// New earliest task, recalculate the wait.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// nextRelease determines how long to wait until the next task. The second
// return is false when the heap is empty.
func (dm *DelayManager) nextRelease() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.Peek()
	if item == nil {
		return 0, false
	}

	now := time.Now()
	if item.runAt.Before(now) {
		return 0, true
	}
	return item.runAt.Sub(now), true
}

// releaseExpired releases every task whose time has come, in one batch.
func (dm *DelayManager) releaseExpired() {
	dm.mu.Lock()

	now := time.Now()
	// Collect expired tasks so the release runs outside the lock.
	var expired []*delayedTask

	for dm.pq.Len() > 0 {
		item := dm.pq.Peek()
		if item.runAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		expired = append(expired, item)
	}

	dm.mu.Unlock()

	for _, item := range expired {
		dm.release(item.task)
	}
}

// Stop shuts the loop down and drops any tasks still waiting.
func (dm *DelayManager) Stop() {
	dm.cancel()

	dm.mu.Lock()
	dm.pq = make(delayedTaskHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()
}

// TaskCount returns the number of tasks waiting for release.
func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
