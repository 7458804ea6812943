package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Worker: one goroutine, one bounded ready queue, one execution context
// =============================================================================

// Worker hosts an ExecutionContext on a dedicated goroutine and drains a
// bounded ready-task queue. Ready tasks are concurrently pushed by other
// workers (through the scheduler's dispatch) and consumed only by this
// worker's loop; a trampolined next task never touches the queue at all.
type Worker struct {
	id    int
	queue *readyQueue
	ec    *ExecutionContext

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	history      *executionHistory

	// active-count hooks, installed by the owning scheduler
	onTaskStart func()
	onTaskEnd   func()

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a worker whose unclaimed ready tasks are handed to
// onTaskReady. A nil handler makes the worker self-contained: ready tasks
// loop back into its own queue.
func NewWorker(id int, onTaskReady TaskReadyHandler) *Worker {
	return NewWorkerWithConfig(id, onTaskReady, nil)
}

// NewWorkerWithConfig creates a worker with explicit configuration.
func NewWorkerWithConfig(id int, onTaskReady TaskReadyHandler, config *SchedulerConfig) *Worker {
	cfg := config.withDefaults()

	w := &Worker{
		id:           id,
		queue:        newReadyQueue(cfg.QueueCapacity),
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		panicHandler: cfg.PanicHandler,
		stopCh:       make(chan struct{}),
	}
	if onTaskReady == nil {
		onTaskReady = w.selfEnqueue
	}
	w.ec = NewExecutionContextWithMetrics(onTaskReady, cfg.Metrics)
	return w
}

// Start runs the worker loop until Stop is called or ctx is cancelled. It
// blocks while the queue is empty; on wake it dequeues a task and trampolines
// through ExecuteTask results without requeuing them. Start blocks the calling
// goroutine; the scheduler runs it as `go worker.Start(ctx)`.
func (w *Worker) Start(ctx context.Context) {
	w.running.Store(true)
	defer w.running.Store(false)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		task, ok := w.queue.Pop()
		if !ok {
			select {
			case <-w.queue.Signal():
				continue
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		for task != nil {
			task = w.executeOne(ctx, task)
		}
	}
}

// Stop requests the loop to exit. A task currently executing, including the
// trampoline chain it is in the middle of, runs to completion; only dequeuing
// of new work stops. Safe to call more than once and concurrently with pushes.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// ExecutionContext returns this worker's execution context.
func (w *Worker) ExecutionContext() *ExecutionContext {
	return w.ec
}

// TryEnqueue offers a ready task to this worker's queue. Returns false when
// the queue is at capacity.
func (w *Worker) TryEnqueue(task *Task) bool {
	return w.queue.TryPush(task)
}

// ID returns the worker's ID.
func (w *Worker) ID() int {
	return w.id
}

// IsRunning returns whether the worker loop is active.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// QueuedTaskCount returns the current ready-queue depth.
func (w *Worker) QueuedTaskCount() int {
	return w.queue.Len()
}

// Stats returns an observability snapshot for this worker.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:      w.id,
		Queued:  w.queue.Len(),
		Running: w.running.Load(),
	}
}

// executeOne runs a single task through the execution context, guarding
// against payload panics. On panic the worker survives, the panic handler is
// notified with the captured stack and no trampoline task is returned; the
// panicked task's successors stay pending.
func (w *Worker) executeOne(ctx context.Context, task *Task) (next *Task) {
	record := TaskExecutionRecord{
		TaskName:  resolveTaskName(task),
		WorkerID:  w.id,
		Barrier:   task.IsBarrier(),
		StartedAt: time.Now(),
	}

	if w.onTaskStart != nil {
		w.onTaskStart()
	}
	defer func() {
		if r := recover(); r != nil {
			record.Panicked = true
			next = nil
			w.metrics.RecordTaskPanic(w.id, r)
			w.panicHandler.HandlePanic(ctx, record.TaskName, w.id, r, debug.Stack())
		}
		record.FinishedAt = time.Now()
		record.Duration = record.FinishedAt.Sub(record.StartedAt)
		record.Trampolined = next != nil
		if w.history != nil {
			w.history.Add(record)
		}
		w.metrics.RecordTaskDuration(w.id, record.Duration)
		if w.onTaskEnd != nil {
			w.onTaskEnd()
		}
	}()

	next = w.ec.ExecuteTask(ctx, task)
	return next
}

// selfEnqueue is the ready handler of a standalone worker: every unclaimed
// ready task goes back into this worker's own queue. Backpressure matches the
// scheduler's dispatch policy: back off and retry, never drop.
func (w *Worker) selfEnqueue(task *Task) {
	for !w.queue.TryPush(task) {
		select {
		case <-w.stopCh:
			w.logger.Warn("worker stopped, ready task dropped", F("task", resolveTaskName(task)))
			return
		default:
			time.Sleep(dispatchBackoff)
		}
	}
}
