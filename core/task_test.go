package core

import (
	"context"
	"sync"
	"testing"
)

// TestTask_DependsOn_CountsPredecessors tests static graph wiring
// Main test items:
// 1. DependsOn raises the predecessor counter by the number of edges
// 2. Each dependency records the task as a successor
// 3. A root task has zero pending dependencies
func TestTask_DependsOn_CountsPredecessors(t *testing.T) {
	a := NewNamedTask("a", func(ctx context.Context) {})
	b := NewNamedTask("b", func(ctx context.Context) {})
	c := NewNamedTask("c", func(ctx context.Context) {})

	if got := c.PendingDependencies(); got != 0 {
		t.Fatalf("fresh task: expected 0 pending dependencies, got %d", got)
	}

	c.DependsOn(a, b)

	if got := c.PendingDependencies(); got != 2 {
		t.Errorf("expected 2 pending dependencies, got %d", got)
	}
	if got := a.SuccessorCount(); got != 1 {
		t.Errorf("a: expected 1 successor, got %d", got)
	}
	if got := b.SuccessorCount(); got != 1 {
		t.Errorf("b: expected 1 successor, got %d", got)
	}
}

// TestTask_ScheduleConditional_ExactlyOnce tests the readiness transition
// Main test items:
// 1. Only the call that drives the counter to zero reports ready
// 2. Concurrent predecessor completions produce exactly one ready signal
func TestTask_ScheduleConditional_ExactlyOnce(t *testing.T) {
	const predecessors = 64

	task := NewTask(func(ctx context.Context) {})
	deps := make([]*Task, predecessors)
	for i := range deps {
		deps[i] = NewTask(func(ctx context.Context) {})
	}
	task.DependsOn(deps...)

	ready := make(chan struct{}, predecessors)
	var wg sync.WaitGroup
	for i := 0; i < predecessors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if task.ScheduleConditional() {
				ready <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(ready)

	count := 0
	for range ready {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 ready transition, got %d", count)
	}
	if got := task.PendingDependencies(); got != 0 {
		t.Errorf("expected counter at 0, got %d", got)
	}
}

// TestTask_SetDependencies_ReservesSchedulingToken tests the reschedule wait
// Main test items:
// 1. SetDependencies stores one unit more than the number of dependencies
// 2. The extra unit keeps the task pending until the issuing execution unwinds
// 3. SetDependencies on a task with outstanding dependencies panics
func TestTask_SetDependencies_ReservesSchedulingToken(t *testing.T) {
	task := NewTask(func(ctx context.Context) {})
	a := NewTask(func(ctx context.Context) {})
	b := NewTask(func(ctx context.Context) {})

	task.SetDependencies(a, b)

	if got := task.PendingDependencies(); got != 3 {
		t.Fatalf("expected counter 3 (2 deps + token), got %d", got)
	}

	// Both dependencies resolve; the token still holds the task back.
	task.ScheduleConditional()
	if task.ScheduleConditional() {
		t.Fatal("task reported ready with the scheduling token outstanding")
	}
	if !task.ScheduleConditional() {
		t.Fatal("consuming the token should make the task ready")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for SetDependencies with pending dependencies")
		}
	}()
	other := NewTask(func(ctx context.Context) {})
	other.DependsOn(a)
	other.SetDependencies(b)
}

// TestTask_ContinueWith_TransfersSuccessors tests continuation hand-off
// Main test items:
// 1. Successors move from the finished task to its continuation
// 2. The continuation is recorded and queryable
// 3. A self-continuation keeps the successor list in place
func TestTask_ContinueWith_TransfersSuccessors(t *testing.T) {
	task := NewNamedTask("task", func(ctx context.Context) {})
	next := NewNamedTask("next", func(ctx context.Context) {})
	s1 := NewTask(func(ctx context.Context) {})
	s2 := NewTask(func(ctx context.Context) {})
	s1.DependsOn(task)
	s2.DependsOn(task)

	task.ContinueWith(next)

	if got := task.Continuation(); got != next {
		t.Errorf("expected continuation %q, got %v", next.Name(), got)
	}
	if got := task.SuccessorCount(); got != 0 {
		t.Errorf("task: expected 0 successors after hand-off, got %d", got)
	}
	if got := next.SuccessorCount(); got != 2 {
		t.Errorf("next: expected 2 adopted successors, got %d", got)
	}

	// Self-continuation marks the task without draining anything.
	self := NewNamedTask("self", func(ctx context.Context) {})
	dep := NewTask(func(ctx context.Context) {})
	dep.DependsOn(self)
	self.ContinueWith(self)

	if got := self.Continuation(); got != self {
		t.Errorf("expected self continuation, got %v", got)
	}
	if got := self.SuccessorCount(); got != 1 {
		t.Errorf("self: expected successors untouched, got %d", got)
	}
}

// TestTask_MoveSuccessors_DrainsList tests the completion hand-off
// Main test items:
// 1. MoveSuccessors appends every successor to the destination
// 2. The source list is emptied
// 3. Moving twice yields nothing the second time
func TestTask_MoveSuccessors_DrainsList(t *testing.T) {
	task := NewTask(func(ctx context.Context) {})
	s1 := NewTask(func(ctx context.Context) {})
	s2 := NewTask(func(ctx context.Context) {})
	s1.DependsOn(task)
	s2.DependsOn(task)

	var pending []*Task
	task.MoveSuccessors(&pending)

	if len(pending) != 2 {
		t.Fatalf("expected 2 moved successors, got %d", len(pending))
	}
	if got := task.SuccessorCount(); got != 0 {
		t.Errorf("expected source drained, got %d successors", got)
	}

	task.MoveSuccessors(&pending)
	if len(pending) != 2 {
		t.Errorf("second move should be a no-op, got %d entries", len(pending))
	}
}

// TestTask_Barrier tests synthesized join tasks
// Main test items:
// 1. A barrier has no payload and executes as a no-op
// 2. IsBarrier distinguishes barriers from payload tasks
func TestTask_Barrier(t *testing.T) {
	barrier := newBarrierTask()

	if !barrier.IsBarrier() {
		t.Error("expected IsBarrier true for a synthesized barrier")
	}
	barrier.Execute(context.Background())

	payload := NewTask(func(ctx context.Context) {})
	if payload.IsBarrier() {
		t.Error("expected IsBarrier false for a payload task")
	}
}
