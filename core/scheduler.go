package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	schedulerCreated int32 = iota
	schedulerRunning
	schedulerStopped
)

// dispatchBackoff is how long a producer sleeps after finding every worker
// queue full before retrying the round.
const dispatchBackoff = 200 * time.Microsecond

// =============================================================================
// Scheduler: owns the worker pool and routes submissions
// =============================================================================

// Scheduler owns a pool of workers sized to hardware concurrency, starts one
// goroutine per worker and routes root submissions and cross-worker ready
// tasks to their queues. Stop stops every worker and then joins every
// goroutine, in that order; a stopped scheduler is not restartable, construct
// a fresh one instead.
type Scheduler struct {
	workers []*Worker
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	// next rotates external submissions and ready-task dispatch across
	// workers so no single queue runs hot.
	next atomic.Uint32

	state        atomic.Int32
	metricActive atomic.Int32

	delayManager *DelayManager
	history      *executionHistory

	logger              Logger
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
}

// NewScheduler creates a scheduler with the given number of workers and
// default configuration. workers <= 0 selects hardware concurrency.
func NewScheduler(workers int) *Scheduler {
	return NewSchedulerWithConfig(&SchedulerConfig{Workers: workers})
}

// NewSchedulerWithConfig creates a scheduler from an explicit configuration.
func NewSchedulerWithConfig(config *SchedulerConfig) *Scheduler {
	cfg := config.withDefaults()

	s := &Scheduler{
		history:             newExecutionHistory(cfg.HistoryCapacity),
		logger:              cfg.Logger,
		metrics:             cfg.Metrics,
		rejectedTaskHandler: cfg.RejectedTaskHandler,
	}
	s.delayManager = NewDelayManager(s.dispatch)

	s.workers = make([]*Worker, cfg.Workers)
	for i := range s.workers {
		w := NewWorkerWithConfig(i, s.dispatch, cfg)
		w.history = s.history
		w.onTaskStart = s.onTaskStart
		w.onTaskEnd = s.onTaskEnd
		s.workers[i] = w
	}
	return s
}

// Start spawns one goroutine per worker. Calling Start on a running or
// stopped scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.state.CompareAndSwap(schedulerCreated, schedulerRunning) {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *Worker) {
			defer s.wg.Done()
			w.Start(runCtx)
		}(w)
	}
	s.logger.Info("scheduler started", F("workers", len(s.workers)))
}

// Stop stops every worker, then joins every worker goroutine. Workers finish
// the task (and trampoline chain) they are executing but dequeue nothing new.
// Safe to call more than once; never deadlocks against workers blocked on an
// empty queue.
func (s *Scheduler) Stop() {
	if !s.state.CompareAndSwap(schedulerRunning, schedulerStopped) {
		// Stopping a never-started scheduler still tears down the
		// delay manager.
		if s.state.CompareAndSwap(schedulerCreated, schedulerStopped) {
			s.delayManager.Stop()
		}
		return
	}

	s.delayManager.Stop()
	for _, w := range s.workers {
		w.Stop()
	}
	s.wg.Wait()
	if s.cancel != nil {
		s.cancel()
	}

	// Drop whatever was still queued, reporting each task through the
	// rejection surface. The workers have exited, so nothing races the
	// drain.
	for _, w := range s.workers {
		for {
			task, ok := w.queue.Pop()
			if !ok {
				break
			}
			s.reject(task, "scheduler stopped")
		}
	}
	s.logger.Info("scheduler stopped", F("workers", len(s.workers)))
}

// IsRunning returns whether the scheduler has been started and not stopped.
func (s *Scheduler) IsRunning() bool {
	return s.state.Load() == schedulerRunning
}

// ExecutionContext resolves which execution context a submission should use.
// Called from inside a running task it returns that task's own worker context,
// keeping recursively built graphs on a warm core; called from any other
// goroutine it rotates across workers.
func (s *Scheduler) ExecutionContext(ctx context.Context) *ExecutionContext {
	if ec := CurrentExecutionContext(ctx); ec != nil && s.ownsContext(ec) {
		return ec
	}
	return s.nextWorker().ExecutionContext()
}

// Submit routes a root task (zero pending predecessors) to a worker queue.
// From inside a running task the submission prefers that task's own worker;
// external submissions rotate. Submitting a task that still has pending
// dependencies is a programmer error.
func (s *Scheduler) Submit(ctx context.Context, task *Task) {
	if n := task.PendingDependencies(); n > 0 {
		panic(fmt.Sprintf("core: Submit of task %q with %d pending dependencies", resolveTaskName(task), n))
	}

	if ec := CurrentExecutionContext(ctx); ec != nil {
		if w := s.workerFor(ec); w != nil && w.TryEnqueue(task) {
			s.metrics.RecordQueueDepth(w.id, w.QueuedTaskCount())
			return
		}
	}
	s.dispatch(task)
}

// SubmitAfter schedules a root task for submission once delay has elapsed.
// Delayed tasks still pending when the scheduler stops are dropped.
func (s *Scheduler) SubmitAfter(task *Task, delay time.Duration) {
	if s.state.Load() == schedulerStopped {
		s.reject(task, "scheduler stopped")
		return
	}
	s.delayManager.AddDelayedTask(task, delay)
}

// dispatch routes a ready task that no trampoline claimed: round-robin
// try-push over every worker queue. When every queue is full the dispatching
// thread backs off and retries (backpressure on the producer, never a drop).
// After Stop, dispatch drops the task and reports it as rejected.
func (s *Scheduler) dispatch(task *Task) {
	for attempt := 0; ; attempt++ {
		if s.state.Load() == schedulerStopped {
			s.reject(task, "scheduler stopped")
			return
		}

		n := len(s.workers)
		start := int(s.next.Add(1)-1) % n
		for i := 0; i < n; i++ {
			w := s.workers[(start+i)%n]
			if w.TryEnqueue(task) {
				s.metrics.RecordQueueDepth(w.id, w.QueuedTaskCount())
				return
			}
		}

		s.metrics.RecordDispatchOverflow()
		if attempt == 0 {
			s.logger.Warn("all worker queues full, backing off",
				F("task", resolveTaskName(task)))
		}
		time.Sleep(dispatchBackoff)
	}
}

func (s *Scheduler) reject(task *Task, reason string) {
	name := resolveTaskName(task)
	s.rejectedTaskHandler.HandleRejectedTask(name, reason)
	s.metrics.RecordTaskRejected(reason)
}

func (s *Scheduler) nextWorker() *Worker {
	return s.workers[int(s.next.Add(1)-1)%len(s.workers)]
}

func (s *Scheduler) workerFor(ec *ExecutionContext) *Worker {
	for _, w := range s.workers {
		if w.ec == ec {
			return w
		}
	}
	return nil
}

func (s *Scheduler) ownsContext(ec *ExecutionContext) bool {
	return s.workerFor(ec) != nil
}

func (s *Scheduler) onTaskStart() {
	s.metricActive.Add(1)
}

func (s *Scheduler) onTaskEnd() {
	s.metricActive.Add(-1)
}

// =============================================================================
// Observability
// =============================================================================

// WorkerCount returns the size of the worker pool.
func (s *Scheduler) WorkerCount() int {
	return len(s.workers)
}

// QueuedTaskCount returns the total depth of all ready queues.
func (s *Scheduler) QueuedTaskCount() int {
	total := 0
	for _, w := range s.workers {
		total += w.QueuedTaskCount()
	}
	return total
}

// ActiveTaskCount returns the number of tasks currently executing.
func (s *Scheduler) ActiveTaskCount() int {
	return int(s.metricActive.Load())
}

// DelayedTaskCount returns the number of tasks waiting in the delay manager.
func (s *Scheduler) DelayedTaskCount() int {
	return s.delayManager.TaskCount()
}

// Stats returns an observability snapshot for the whole scheduler.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Workers: len(s.workers),
		Queued:  s.QueuedTaskCount(),
		Active:  s.ActiveTaskCount(),
		Delayed: s.DelayedTaskCount(),
		Running: s.IsRunning(),
	}
}

// WorkerStats returns per-worker observability snapshots.
func (s *Scheduler) WorkerStats() []WorkerStats {
	out := make([]WorkerStats, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.Stats())
	}
	return out
}

// RecentExecutions returns up to limit recent execution records, most recent
// first. This is the first place to look when a graph appears stalled.
func (s *Scheduler) RecentExecutions(limit int) []TaskExecutionRecord {
	return s.history.Recent(limit)
}

// LastExecution returns the most recent execution record, if any.
func (s *Scheduler) LastExecution() (TaskExecutionRecord, bool) {
	return s.history.Last()
}
