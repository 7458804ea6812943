package taskgraph

import "github.com/RDFacendola/go-task-graph/core"

// Re-export commonly used types from the core package for convenience.
// This allows users to import only the taskgraph package for most use cases.

// Task is a schedulable node in a dependency graph.
type Task = core.Task

// Work is the unit of work carried by a Task (Closure).
type Work = core.Work

// Scheduler owns the worker pool and routes submissions.
type Scheduler = core.Scheduler

// SchedulerConfig configures a Scheduler.
type SchedulerConfig = core.SchedulerConfig

// Worker hosts an execution context on a dedicated goroutine.
type Worker = core.Worker

// ExecutionContext executes one task at a time on behalf of a worker.
type ExecutionContext = core.ExecutionContext

// TaskReadyHandler receives ready tasks not claimed by a trampoline.
type TaskReadyHandler = core.TaskReadyHandler

// Observability types.
type (
	SchedulerStats      = core.SchedulerStats
	WorkerStats         = core.WorkerStats
	TaskExecutionRecord = core.TaskExecutionRecord
)

// Pluggable interfaces.
type (
	Logger              = core.Logger
	Metrics             = core.Metrics
	PanicHandler        = core.PanicHandler
	RejectedTaskHandler = core.RejectedTaskHandler
)

// Constructors and helpers re-exported from core.
var (
	NewTask                = core.NewTask
	NewNamedTask           = core.NewNamedTask
	NewScheduler           = core.NewScheduler
	NewSchedulerWithConfig = core.NewSchedulerWithConfig
	DefaultSchedulerConfig = core.DefaultSchedulerConfig

	// Cooperative primitives, valid only inside a running task's payload.
	RescheduleTask = core.RescheduleTask
	YieldTask      = core.YieldTask

	// CurrentExecutionContext resolves the innermost execution context of
	// the calling task, or nil outside any task.
	CurrentExecutionContext = core.CurrentExecutionContext
)
