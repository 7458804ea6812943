package core

import "time"

// TaskExecutionRecord captures one completed ExecuteTask invocation.
type TaskExecutionRecord struct {
	TaskName    string
	WorkerID    int
	Barrier     bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Panicked    bool
	Trampolined bool // the execution handed a next task straight back to its worker
}

// WorkerStats represents runtime observability state for a single worker.
type WorkerStats struct {
	ID      int
	Queued  int
	Running bool
}

// SchedulerStats represents runtime observability state for a scheduler.
type SchedulerStats struct {
	Workers int
	Queued  int
	Active  int
	Delayed int
	Running bool
}
