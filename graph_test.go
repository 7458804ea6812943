package taskgraph_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	taskgraph "github.com/RDFacendola/go-task-graph"
)

// TestGlobalScheduler_Lifecycle tests the process-wide singleton
// Main test items:
// 1. InitGlobalScheduler starts a shared instance returned by GetScheduler
// 2. Shutdown stops it; the next GetScheduler lazily creates a fresh one
func TestGlobalScheduler_Lifecycle(t *testing.T) {
	taskgraph.InitGlobalScheduler(2)
	t.Cleanup(taskgraph.ShutdownGlobalScheduler)

	first := taskgraph.GetScheduler()
	require.NotNil(t, first)
	require.Same(t, first, taskgraph.GetScheduler())
	require.True(t, first.IsRunning())

	taskgraph.ShutdownGlobalScheduler()
	require.False(t, first.IsRunning())

	second := taskgraph.GetScheduler()
	require.NotSame(t, first, second)
	require.True(t, second.IsRunning())
}

// TestGraph_FanOutFanIn tests many concurrent diamond graphs
// Main test items:
// 1. Every leaf of every graph executes exactly once
// 2. Each join runs after all of its leaves
// 3. Graphs built concurrently from several goroutines do not interfere
func TestGraph_FanOutFanIn(t *testing.T) {
	const (
		builders = 8
		graphs   = 25
		leaves   = 8
	)

	taskgraph.InitGlobalScheduler(4)
	t.Cleanup(taskgraph.ShutdownGlobalScheduler)

	var leafRuns atomic.Int64

	var g errgroup.Group
	for b := 0; b < builders; b++ {
		g.Go(func() error {
			for i := 0; i < graphs; i++ {
				var local atomic.Int64
				done := make(chan struct{})

				root := taskgraph.NewTask(func(ctx context.Context) {})
				leafTasks := make([]*taskgraph.Task, leaves)
				for l := range leafTasks {
					leafTasks[l] = taskgraph.NewTask(func(ctx context.Context) {
						local.Add(1)
						leafRuns.Add(1)
					})
					leafTasks[l].DependsOn(root)
				}
				join := taskgraph.NewTask(func(ctx context.Context) {
					close(done)
				})
				join.DependsOn(leafTasks...)

				taskgraph.Submit(context.Background(), root)

				select {
				case <-done:
				case <-time.After(5 * time.Second):
					return context.DeadlineExceeded
				}
				if got := local.Load(); got != leaves {
					t.Errorf("join observed %d of %d leaves", got, leaves)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int64(builders*graphs*leaves), leafRuns.Load())
}

// newFibTask builds a task computing fib(n) into result by forking two
// sub-tasks and yielding on them; the resumed execution sums their results.
func newFibTask(n int, result *int64) *taskgraph.Task {
	var left, right int64
	spawned := false
	return taskgraph.NewTask(func(ctx context.Context) {
		if n < 2 {
			*result = int64(n)
			return
		}
		if !spawned {
			spawned = true
			a := newFibTask(n-1, &left)
			b := newFibTask(n-2, &right)
			// Wire the dependencies before the sub-tasks can run anywhere.
			taskgraph.YieldTask(ctx, a, b)
			taskgraph.Submit(ctx, a)
			taskgraph.Submit(ctx, b)
			return
		}
		*result = left + right
	})
}

// TestGraph_ForkJoinRecursion tests recursive fork-join through YieldTask
// Main test items:
// 1. A task may fork sub-tasks, suspend on them and resume with their results
// 2. The recursion completes without unbounded stack or queue growth
func TestGraph_ForkJoinRecursion(t *testing.T) {
	taskgraph.InitGlobalScheduler(4)
	t.Cleanup(taskgraph.ShutdownGlobalScheduler)

	var result int64
	done := make(chan struct{})

	fib := newFibTask(12, &result)
	tail := taskgraph.NewTask(func(ctx context.Context) {
		close(done)
	})
	tail.DependsOn(fib)

	taskgraph.Submit(context.Background(), fib)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("recursive graph did not complete")
	}
	require.Equal(t, int64(144), result)
}

// TestGraph_SubmitAfter tests delayed submission through the facade
func TestGraph_SubmitAfter(t *testing.T) {
	taskgraph.InitGlobalScheduler(2)
	t.Cleanup(taskgraph.ShutdownGlobalScheduler)

	done := make(chan struct{})
	start := time.Now()
	const delay = 40 * time.Millisecond

	taskgraph.SubmitAfter(taskgraph.NewTask(func(ctx context.Context) {
		close(done)
	}), delay)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task did not run")
	}
	require.GreaterOrEqual(t, time.Since(start), delay)
}
