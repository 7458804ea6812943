package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Work is the unit of work carried by a Task (Closure).
// Its side effects are opaque to the scheduler.
type Work func(ctx context.Context)

// =============================================================================
// Task: a node in the dependency graph
// =============================================================================

// Task is a schedulable node in a dependency graph.
//
// A task becomes ready exactly once, when its predecessor counter reaches
// zero. It then executes on exactly one worker, and on genuine completion
// hands its successors over to the execution context that ran it. A payload
// may instead cooperatively reschedule or yield its own task (see
// RescheduleTask and YieldTask), in which case the task is not finished and
// its successors stay attached until a later execution completes for real.
//
// Tasks are shared freely between successor lists, worker queues and callers;
// the garbage collector reclaims a task once the last reference drops.
type Task struct {
	work Work
	name string

	// pending is the predecessor counter. Once the task is wired it only
	// ever decreases; the zero transition is observed by exactly one
	// ScheduleConditional call, no matter how many predecessors finish
	// concurrently.
	pending atomic.Int32

	mu           sync.Mutex
	successors   []*Task
	continuation *Task
}

// NewTask creates a root task with no dependencies wrapping the given payload.
func NewTask(work Work) *Task {
	return &Task{work: work}
}

// NewNamedTask creates a root task with an explicit name used by diagnostics.
func NewNamedTask(name string, work Work) *Task {
	return &Task{work: work, name: name}
}

// newBarrierTask creates a payload-free task used to join several continuation
// candidates. Executing a barrier performs no work.
func newBarrierTask() *Task {
	return &Task{name: "barrier"}
}

// Name returns the task's explicit name, or "" if none was given.
func (t *Task) Name() string {
	return t.name
}

// IsBarrier reports whether this task is a synthesized join with no payload.
func (t *Task) IsBarrier() bool {
	return t.work == nil
}

// Execute runs the task's payload. Barrier tasks return immediately.
func (t *Task) Execute(ctx context.Context) {
	if t.work == nil {
		return
	}
	t.work(ctx)
}

// DependsOn wires static graph edges: t will not become ready until every dep
// has completed. Meant for graph construction before submission; an edge added
// after a dep already handed off its successors is never accounted for, so
// wire first, submit after.
func (t *Task) DependsOn(deps ...*Task) {
	t.pending.Add(int32(len(deps)))
	for _, dep := range deps {
		dep.addSuccessor(t)
	}
}

// SetDependencies replaces the task's dependency set with a fresh wait, used
// when the task reschedules or yields itself mid-execution.
//
// The counter is set to len(deps)+1. The extra unit is a scheduling token
// consumed by the pending walk of the execution that issued the reschedule; it
// keeps the task from turning ready while its current execution is still on
// the stack, even if every new dependency finishes concurrently on other
// workers.
//
// Calling this on a task that still has pending dependencies is a programmer
// error.
func (t *Task) SetDependencies(deps ...*Task) {
	if n := t.pending.Load(); n != 0 {
		panic(fmt.Sprintf("core: SetDependencies on task %q with %d pending dependencies", t.name, n))
	}
	t.pending.Store(int32(len(deps)) + 1)
	for _, dep := range deps {
		dep.addSuccessor(t)
	}
}

// ScheduleConditional consumes one unit of the predecessor counter and reports
// whether the task just became ready. Safe against concurrent calls from
// multiple finishing predecessors: exactly one call observes the zero
// transition.
func (t *Task) ScheduleConditional() bool {
	return t.pending.Add(-1) == 0
}

// ContinueWith marks next as the task that stands in for t's completion: t's
// pending successors transfer to next, so the graph below t joins on the
// continuation chain instead of on this execution. A task that yielded is its
// own continuation, in which case there is nothing to transfer.
//
// An edge from t to next itself stays on t: when t yielded alongside nested
// candidates, t is a predecessor of its own continuation barrier, and that
// edge resolves only when a later execution of t genuinely completes. Moving
// it would make the barrier its own successor and strand the join.
func (t *Task) ContinueWith(next *Task) {
	t.mu.Lock()
	t.continuation = next
	if next == t {
		t.mu.Unlock()
		return
	}
	var moved, kept []*Task
	for _, s := range t.successors {
		if s == next {
			kept = append(kept, s)
			continue
		}
		moved = append(moved, s)
	}
	t.successors = kept
	t.mu.Unlock()

	if len(moved) > 0 {
		next.adoptSuccessors(moved)
	}
}

// MoveSuccessors drains t's successor list into dst. Called once t is
// genuinely finished; the caller evaluates each successor's readiness.
func (t *Task) MoveSuccessors(dst *[]*Task) {
	t.mu.Lock()
	moved := t.successors
	t.successors = nil
	t.mu.Unlock()

	*dst = append(*dst, moved...)
}

// Continuation returns the task registered via ContinueWith, or nil.
func (t *Task) Continuation() *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.continuation
}

// PendingDependencies returns the current value of the predecessor counter.
func (t *Task) PendingDependencies() int {
	return int(t.pending.Load())
}

// SuccessorCount returns the number of successors currently attached.
func (t *Task) SuccessorCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.successors)
}

func (t *Task) addSuccessor(s *Task) {
	t.mu.Lock()
	t.successors = append(t.successors, s)
	t.mu.Unlock()
}

func (t *Task) adoptSuccessors(tasks []*Task) {
	t.mu.Lock()
	t.successors = append(t.successors, tasks...)
	t.mu.Unlock()
}
