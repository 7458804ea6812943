package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestDelayManager_ReleasesAfterDelay tests basic timing
// Main test items:
// 1. A task is released only once its delay elapsed
// 2. The pending count drops after the release
func TestDelayManager_ReleasesAfterDelay(t *testing.T) {
	released := make(chan *Task, 1)
	dm := NewDelayManager(func(task *Task) {
		released <- task
	})
	defer dm.Stop()

	task := NewTask(func(ctx context.Context) {})
	start := time.Now()
	const delay = 30 * time.Millisecond
	dm.AddDelayedTask(task, delay)

	if got := dm.TaskCount(); got != 1 {
		t.Errorf("expected 1 pending task, got %d", got)
	}

	select {
	case got := <-released:
		if got != task {
			t.Errorf("released wrong task: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task was never released")
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("released after %v, before the %v delay", elapsed, delay)
	}
	if got := dm.TaskCount(); got != 0 {
		t.Errorf("expected 0 pending tasks after release, got %d", got)
	}
}

// TestDelayManager_ReleasesInDeadlineOrder tests heap ordering
// Main test items:
// 1. A shorter delay added later is released first
// 2. All tasks are eventually released
func TestDelayManager_ReleasesInDeadlineOrder(t *testing.T) {
	var mu sync.Mutex
	var order []*Task
	releasedAll := make(chan struct{})

	dm := NewDelayManager(func(task *Task) {
		mu.Lock()
		order = append(order, task)
		if len(order) == 2 {
			close(releasedAll)
		}
		mu.Unlock()
	})
	defer dm.Stop()

	slow := NewNamedTask("slow", func(ctx context.Context) {})
	fast := NewNamedTask("fast", func(ctx context.Context) {})

	dm.AddDelayedTask(slow, 80*time.Millisecond)
	dm.AddDelayedTask(fast, 20*time.Millisecond)

	select {
	case <-releasedAll:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks were never released")
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != fast || order[1] != slow {
		t.Errorf("expected release order [fast slow], got [%s %s]",
			order[0].Name(), order[1].Name())
	}
}

// TestDelayManager_StopDropsPending tests teardown
// Main test items:
// 1. Stop prevents further releases
// 2. Stop is safe to call twice
func TestDelayManager_StopDropsPending(t *testing.T) {
	released := make(chan *Task, 1)
	dm := NewDelayManager(func(task *Task) {
		released <- task
	})

	dm.AddDelayedTask(NewTask(func(ctx context.Context) {}), 30*time.Millisecond)
	dm.Stop()
	dm.Stop()

	select {
	case <-released:
		t.Error("no release expected after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}
