package taskgraph

import (
	"context"
	"sync"
	"time"

	"github.com/RDFacendola/go-task-graph/core"
)

// =============================================================================
// Global Scheduler Helper (Singleton)
// =============================================================================

var (
	globalScheduler *core.Scheduler
	globalMu        sync.Mutex
)

// InitGlobalScheduler initializes the global scheduler with the specified
// number of workers and starts it immediately. A no-op if the global
// scheduler already exists.
func InitGlobalScheduler(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler != nil {
		return
	}

	globalScheduler = core.NewScheduler(workers)
	globalScheduler.Start(context.Background())
}

// GetScheduler returns the process-wide scheduler, creating and starting it
// with one worker per CPU on first use.
func GetScheduler() *core.Scheduler {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler == nil {
		globalScheduler = core.NewScheduler(0)
		globalScheduler.Start(context.Background())
	}
	return globalScheduler
}

// ShutdownGlobalScheduler stops the global scheduler and joins its workers.
// A subsequent GetScheduler creates a fresh one.
func ShutdownGlobalScheduler() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalScheduler != nil {
		globalScheduler.Stop()
		globalScheduler = nil
	}
}

// Submit routes a root task through the global scheduler.
func Submit(ctx context.Context, task *Task) {
	GetScheduler().Submit(ctx, task)
}

// SubmitAfter schedules a root task on the global scheduler after a delay.
func SubmitAfter(task *Task, delay time.Duration) {
	GetScheduler().SubmitAfter(task, delay)
}
