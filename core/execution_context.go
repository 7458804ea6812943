package core

import (
	"context"
	"fmt"
)

// TaskReadyHandler receives tasks that became ready on some execution context
// but were not claimed as that context's trampoline result. A ready task has
// exactly one owner, so the handler routes it to a single worker queue rather
// than broadcasting it.
type TaskReadyHandler func(task *Task)

// executionFrame holds the transient state of one ExecuteTask invocation: the
// task whose payload is running (the reschedulable task), the tasks this
// execution made pending, and the continuation candidates it gathered. Frames
// form a stack through parent so a payload may drive nested ExecuteTask calls
// without corrupting the enclosing invocation.
type executionFrame struct {
	parent        *executionFrame
	task          *Task
	rescheduled   bool
	yielded       bool
	pending       []*Task
	continuations []*Task
}

// =============================================================================
// ExecutionContext: per-worker task execution state machine
// =============================================================================

// ExecutionContext executes one task at a time on behalf of a single worker
// goroutine. It is confined to that goroutine; none of its state needs
// locking. The only cross-thread effects of an execution are the atomic
// predecessor decrements and the ready-task publications.
type ExecutionContext struct {
	onTaskReady TaskReadyHandler
	metrics     Metrics
	frame       *executionFrame
}

// NewExecutionContext creates an execution context publishing unclaimed ready
// tasks through onTaskReady.
func NewExecutionContext(onTaskReady TaskReadyHandler) *ExecutionContext {
	return NewExecutionContextWithMetrics(onTaskReady, nil)
}

// NewExecutionContextWithMetrics creates an execution context with an explicit
// metrics sink. A nil metrics falls back to NilMetrics.
func NewExecutionContextWithMetrics(onTaskReady TaskReadyHandler, metrics Metrics) *ExecutionContext {
	if metrics == nil {
		metrics = &NilMetrics{}
	}
	return &ExecutionContext{
		onTaskReady: onTaskReady,
		metrics:     metrics,
	}
}

// =============================================================================
// Context Helper
// =============================================================================

type executionContextKeyType struct{}

var executionContextKey executionContextKeyType

// CurrentExecutionContext returns the execution context of the task currently
// running on this call path, or nil when called outside any task. ExecuteTask
// threads the context through the payload's context.Context, so nested task
// execution resolves to the innermost context naturally.
func CurrentExecutionContext(ctx context.Context) *ExecutionContext {
	if v := ctx.Value(executionContextKey); v != nil {
		return v.(*ExecutionContext)
	}
	return nil
}

// =============================================================================
// ExecuteTask
// =============================================================================

// ExecuteTask runs task and resolves the outcome of its execution: the task's
// continuation (if it yielded, directly or through nested sub-tasks), the
// hand-off of its successors (if it genuinely finished), and the scheduling of
// every task this execution made ready.
//
// The first newly-ready task of a top-level invocation is withheld from the
// queues and returned, so the calling worker loop continues with it
// immediately (trampoline) and continuation chains neither grow the call stack
// nor round-trip through a queue. Every other newly-ready task is published
// through the ready-task handler for any worker to pick up.
//
// ExecuteTask is reentrant: a payload may call it on further tasks. A nested
// invocation never withholds a trampoline task, because its caller is a
// payload rather than a worker loop; instead it publishes everything it made
// ready and promotes a resolved continuation to the enclosing invocation's
// candidate list, so the enclosing task joins on it.
//
// The frame installed for this invocation is dropped unconditionally, even
// when the payload panics; the enclosing invocation's state is untouched
// either way.
func (ec *ExecutionContext) ExecuteTask(ctx context.Context, task *Task) *Task {
	frame := &executionFrame{parent: ec.frame, task: task}
	ec.frame = frame
	defer func() { ec.frame = frame.parent }()

	runCtx := ctx
	if CurrentExecutionContext(ctx) != ec {
		runCtx = context.WithValue(ctx, executionContextKey, ec)
	}
	task.Execute(runCtx)

	continuation := ec.resolveContinuation(frame)
	switch {
	case continuation == nil:
		if !frame.rescheduled {
			task.MoveSuccessors(&frame.pending)
		}
	case frame.rescheduled && !frame.yielded:
		// The task rescheduled itself without claiming a continuation, yet a
		// nested execution resolved one. The re-execution must not start (and
		// the successors must not release) before that continuation completes,
		// so it becomes an extra dependency of the rescheduled task.
		task.DependsOn(continuation)
		continuation = nil
	default:
		task.ContinueWith(continuation)
	}

	if frame.parent != nil && continuation != nil {
		frame.parent.continuations = append(frame.parent.continuations, continuation)
	}

	return ec.schedulePendingTasks(frame)
}

// resolveContinuation implements the 0/1/many resolution over the frame's
// continuation candidates. A single candidate becomes the continuation
// directly. With several candidates a payload-free barrier task is synthesized
// depending on all of them, so they run concurrently before the join resumes;
// the barrier enters the pending walk to consume its scheduling token.
func (ec *ExecutionContext) resolveContinuation(frame *executionFrame) *Task {
	switch len(frame.continuations) {
	case 0:
		return nil
	case 1:
		return frame.continuations[0]
	default:
		barrier := newBarrierTask()
		barrier.SetDependencies(frame.continuations...)
		frame.pending = append(frame.pending, barrier)
		ec.metrics.RecordBarrierSynthesized()
		return barrier
	}
}

// schedulePendingTasks walks the tasks this execution made pending, consuming
// one readiness unit from each. At the top level the first task to become
// ready is withheld and returned to the worker loop; a newly-ready task is
// either returned or published, never both.
func (ec *ExecutionContext) schedulePendingTasks(frame *executionFrame) *Task {
	var next *Task
	for _, pending := range frame.pending {
		if !pending.ScheduleConditional() {
			continue
		}
		if next == nil && frame.parent == nil {
			next = pending
			continue
		}
		ec.publishReady(pending)
	}
	return next
}

func (ec *ExecutionContext) publishReady(task *Task) {
	if ec.onTaskReady == nil {
		panic(fmt.Sprintf("core: task %q became ready on a context with no ready-task handler", task.Name()))
	}
	ec.onTaskReady(task)
}

// =============================================================================
// Cooperative primitives
// =============================================================================

// RescheduleTask replaces the running task's dependency set and returns it to
// the pending state: once the new dependencies resolve, the task executes
// again from the top, without having been considered finished (its successors
// stay attached). Valid only from inside a task's payload, at most once per
// execution.
//
// New dependencies must be wired here before they are submitted anywhere, or
// a dependency finishing early would never be accounted for.
func RescheduleTask(ctx context.Context, dependencies ...*Task) {
	mustCurrentExecutionContext(ctx, "RescheduleTask").rescheduleCurrent(dependencies, false)
}

// YieldTask is RescheduleTask plus a continuation claim: besides waiting on
// the new dependencies, the task is registered as the thing that should resume
// on this worker once the current execution unwinds.
func YieldTask(ctx context.Context, dependencies ...*Task) {
	mustCurrentExecutionContext(ctx, "YieldTask").rescheduleCurrent(dependencies, true)
}

func mustCurrentExecutionContext(ctx context.Context, op string) *ExecutionContext {
	ec := CurrentExecutionContext(ctx)
	if ec == nil {
		panic(fmt.Sprintf("core: %s called outside a running task", op))
	}
	return ec
}

func (ec *ExecutionContext) rescheduleCurrent(dependencies []*Task, yield bool) {
	frame := ec.frame
	if frame == nil || frame.task == nil {
		panic("core: no reschedulable task on this execution context")
	}
	if frame.rescheduled {
		panic(fmt.Sprintf("core: task %q rescheduled twice within one execution", frame.task.Name()))
	}
	frame.rescheduled = true
	frame.yielded = yield

	frame.task.SetDependencies(dependencies...)
	frame.pending = append(frame.pending, frame.task)
	if yield {
		frame.continuations = append(frame.continuations, frame.task)
	}
}
