package core

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task's payload panics during execution.
// The worker that ran the task survives; the panicked task's successors are
// never released, so the graph below it stalls visibly rather than running on
// top of a half-finished predecessor.
//
// Implementations must be thread-safe as workers may call them concurrently.
type PanicHandler interface {
	// HandlePanic is called with the context the task ran under, the task's
	// name (may be empty), the hosting worker's ID, the recovered panic
	// value and the stack trace captured at recovery time.
	HandlePanic(ctx context.Context, taskName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, taskName string, workerID int, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Worker %d] Task %q panicked: %v\nStack trace:\n%s",
		workerID, taskName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler execution metrics.
// Implementations can forward to monitoring systems (Prometheus, StatsD, ...).
//
// Methods should be non-blocking and fast; they sit on the execution hot path.
type Metrics interface {
	// RecordTaskDuration records how long one task execution took on the
	// given worker.
	RecordTaskDuration(workerID int, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(workerID int, panicInfo any)

	// RecordQueueDepth records the current depth of a worker's ready queue.
	RecordQueueDepth(workerID int, depth int)

	// RecordTaskRejected records a ready task dropped because the scheduler
	// had already stopped.
	RecordTaskRejected(reason string)

	// RecordDispatchOverflow records a full round over every worker queue
	// that found no room for a ready task (producer backpressure engaged).
	RecordDispatchOverflow()

	// RecordBarrierSynthesized records the synthesis of a barrier task
	// joining multiple continuation candidates.
	RecordBarrierSynthesized()
}

// NilMetrics provides a no-op metrics implementation.
// This is the default when no metrics sink is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(workerID int, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(workerID int, panicInfo any)             {}
func (m *NilMetrics) RecordQueueDepth(workerID int, depth int)                {}
func (m *NilMetrics) RecordTaskRejected(reason string)                        {}
func (m *NilMetrics) RecordDispatchOverflow()                                 {}
func (m *NilMetrics) RecordBarrierSynthesized()                               {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a ready task is dropped because the
// scheduler stopped before it could be queued. Queue overflow never rejects;
// it blocks the producer instead.
//
// Implementations must be thread-safe.
type RejectedTaskHandler interface {
	HandleRejectedTask(taskName string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejected tasks.
type DefaultRejectedTaskHandler struct{}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(taskName string, reason string) {
	fmt.Printf("[Scheduler] Task %q rejected: %s\n", taskName, reason)
}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

// SchedulerConfig holds configuration options for a Scheduler.
// Zero fields fall back to defaults.
type SchedulerConfig struct {
	// Workers is the size of the worker pool. Defaults to the hardware
	// concurrency reported by the runtime.
	Workers int

	// QueueCapacity bounds each worker's ready queue. Defaults to 1024.
	QueueCapacity int

	// HistoryCapacity sizes the execution-record ring buffer. Defaults
	// to 100.
	HistoryCapacity int

	// Logger receives lifecycle and backpressure events. Defaults to
	// DefaultLogger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to
	// DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics records execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a ready task is dropped after
	// shutdown. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultSchedulerConfig returns a config with default handlers and sizes.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Workers:             runtime.NumCPU(),
		QueueCapacity:       defaultQueueCapacity,
		HistoryCapacity:     defaultTaskHistoryCapacity,
		Logger:              NewDefaultLogger(),
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}

func (c *SchedulerConfig) withDefaults() *SchedulerConfig {
	out := DefaultSchedulerConfig()
	if c == nil {
		return out
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if c.QueueCapacity > 0 {
		out.QueueCapacity = c.QueueCapacity
	}
	if c.HistoryCapacity > 0 {
		out.HistoryCapacity = c.HistoryCapacity
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	if c.PanicHandler != nil {
		out.PanicHandler = c.PanicHandler
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.RejectedTaskHandler != nil {
		out.RejectedTaskHandler = c.RejectedTaskHandler
	}
	return out
}
