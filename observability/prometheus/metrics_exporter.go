package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RDFacendola/go-task-graph/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds     *prom.HistogramVec
	taskPanicTotal          *prom.CounterVec
	taskRejectedTotal       *prom.CounterVec
	queueDepth              *prom.GaugeVec
	dispatchOverflowTotal   prom.Counter
	barrierSynthesizedTotal prom.Counter
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskgraph"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"worker"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"worker"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of ready tasks dropped after shutdown.",
	}, []string{"reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current ready-queue depth per worker.",
	}, []string{"worker"})
	overflowCounter := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_overflow_total",
		Help:      "Total number of dispatch rounds that found every worker queue full.",
	})
	barrierCounter := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "barrier_synthesized_total",
		Help:      "Total number of barrier tasks synthesized to join continuations.",
	})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if overflowCounter, err = registerCollector(reg, overflowCounter); err != nil {
		return nil, err
	}
	if barrierCounter, err = registerCollector(reg, barrierCounter); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:     durationVec,
		taskPanicTotal:          panicVec,
		taskRejectedTotal:       rejectedVec,
		queueDepth:              queueDepthVec,
		dispatchOverflowTotal:   overflowCounter,
		barrierSynthesizedTotal: barrierCounter,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(workerID int, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(workerLabel(workerID)).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(workerID int, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(workerLabel(workerID)).Inc()
}

// RecordQueueDepth records ready-queue depth.
func (m *MetricsExporter) RecordQueueDepth(workerID int, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(workerLabel(workerID)).Set(float64(depth))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(reason, "unknown")).Inc()
}

// RecordDispatchOverflow records a full dispatch round with no available queue.
func (m *MetricsExporter) RecordDispatchOverflow() {
	if m == nil {
		return
	}
	m.dispatchOverflowTotal.Inc()
}

// RecordBarrierSynthesized records the synthesis of a continuation barrier.
func (m *MetricsExporter) RecordBarrierSynthesized() {
	if m == nil {
		return
	}
	m.barrierSynthesizedTotal.Inc()
}

func workerLabel(workerID int) string {
	return strconv.Itoa(workerID)
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
