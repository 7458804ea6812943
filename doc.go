// Package taskgraph provides a fork-join, continuation-based task scheduler
// for Go: a fixed pool of workers executes a dependency graph (DAG) of small
// units of work, redistributing ready work across workers while letting the
// worker that finished a task continue directly with the next ready one
// (trampoline) instead of round-tripping through a shared queue.
//
// # Quick Start
//
// Initialize the global scheduler at application startup:
//
//	taskgraph.InitGlobalScheduler(4) // 4 workers
//	defer taskgraph.ShutdownGlobalScheduler()
//
// Build a graph and submit its roots:
//
//	done := make(chan struct{})
//	a := taskgraph.NewNamedTask("a", func(ctx context.Context) { /* ... */ })
//	b := taskgraph.NewNamedTask("b", func(ctx context.Context) { /* ... */ })
//	c := taskgraph.NewNamedTask("c", func(ctx context.Context) { close(done) })
//	c.DependsOn(a, b)
//
//	taskgraph.Submit(context.Background(), a)
//	taskgraph.Submit(context.Background(), b)
//	<-done // c ran after both a and b completed
//
// # Key Concepts
//
// Task: a node in the dependency graph with a predecessor counter, a
// successor list and an optional continuation. A task becomes ready exactly
// once, when its counter reaches zero.
//
// Trampoline: when an execution makes several tasks ready, the first stays on
// the same worker and is returned directly from ExecuteTask; the rest are
// published to other workers' queues for load balancing.
//
// Cooperative suspension: a payload never blocks its worker to wait for new
// work. It calls RescheduleTask or YieldTask with a fresh dependency set and
// returns; the scheduler re-executes the task once those dependencies
// resolve. YieldTask additionally claims the right to resume on the same
// worker as soon as the current execution unwinds:
//
//	task = taskgraph.NewTask(func(ctx context.Context) {
//		if !loaded {
//			sub := taskgraph.NewTask(load)
//			taskgraph.YieldTask(ctx, sub) // wire first...
//			taskgraph.Submit(ctx, sub)    // ...then submit
//			return
//		}
//		consume()
//	})
//
// Both primitives are valid only inside a running task's payload and at most
// once per execution; violating either is a programmer error and panics.
//
// # Shutdown
//
// Scheduler.Stop stops every worker from dequeuing new work, then joins every
// worker goroutine. In-flight executions, including the trampoline chain they
// started, run to completion. There is no task-level cancellation.
package taskgraph
