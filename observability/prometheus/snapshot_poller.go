package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/RDFacendola/go-task-graph/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
	WorkerStats() []core.WorkerStats
}

// SnapshotPoller periodically exports scheduler Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedsMu sync.RWMutex
	scheds   map[string]SchedulerSnapshotProvider

	schedulerQueued  *prom.GaugeVec
	schedulerActive  *prom.GaugeVec
	schedulerDelayed *prom.GaugeVec
	schedulerWorkers *prom.GaugeVec
	schedulerRunning *prom.GaugeVec
	workerQueued     *prom.GaugeVec
	workerRunning    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	schedulerQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskgraph",
		Name:      "scheduler_queued",
		Help:      "Queued ready tasks per scheduler.",
	}, []string{"scheduler"})
	schedulerActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskgraph",
		Name:      "scheduler_active",
		Help:      "Tasks currently executing per scheduler.",
	}, []string{"scheduler"})
	schedulerDelayed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskgraph",
		Name:      "scheduler_delayed",
		Help:      "Tasks waiting in the delay manager per scheduler.",
	}, []string{"scheduler"})
	schedulerWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskgraph",
		Name:      "scheduler_workers",
		Help:      "Worker count per scheduler.",
	}, []string{"scheduler"})
	schedulerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskgraph",
		Name:      "scheduler_running",
		Help:      "Scheduler running state (1=running, 0=stopped).",
	}, []string{"scheduler"})
	workerQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskgraph",
		Name:      "worker_queued",
		Help:      "Ready-queue depth per worker.",
	}, []string{"scheduler", "worker"})
	workerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskgraph",
		Name:      "worker_running",
		Help:      "Worker loop state (1=running, 0=stopped).",
	}, []string{"scheduler", "worker"})

	var err error
	if schedulerQueued, err = registerCollector(reg, schedulerQueued); err != nil {
		return nil, err
	}
	if schedulerActive, err = registerCollector(reg, schedulerActive); err != nil {
		return nil, err
	}
	if schedulerDelayed, err = registerCollector(reg, schedulerDelayed); err != nil {
		return nil, err
	}
	if schedulerWorkers, err = registerCollector(reg, schedulerWorkers); err != nil {
		return nil, err
	}
	if schedulerRunning, err = registerCollector(reg, schedulerRunning); err != nil {
		return nil, err
	}
	if workerQueued, err = registerCollector(reg, workerQueued); err != nil {
		return nil, err
	}
	if workerRunning, err = registerCollector(reg, workerRunning); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		scheds:           make(map[string]SchedulerSnapshotProvider),
		schedulerQueued:  schedulerQueued,
		schedulerActive:  schedulerActive,
		schedulerDelayed: schedulerDelayed,
		schedulerWorkers: schedulerWorkers,
		schedulerRunning: schedulerRunning,
		workerQueued:     workerQueued,
		workerRunning:    workerRunning,
	}, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedsMu.Lock()
	p.scheds[name] = provider
	p.schedsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.schedsMu.RLock()
	defer p.schedsMu.RUnlock()

	for name, provider := range p.scheds {
		stats := provider.Stats()
		p.schedulerQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.schedulerActive.WithLabelValues(name).Set(float64(stats.Active))
		p.schedulerDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.schedulerWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.Running {
			p.schedulerRunning.WithLabelValues(name).Set(1)
		} else {
			p.schedulerRunning.WithLabelValues(name).Set(0)
		}

		for _, ws := range provider.WorkerStats() {
			worker := strconv.Itoa(ws.ID)
			p.workerQueued.WithLabelValues(name, worker).Set(float64(ws.Queued))
			if ws.Running {
				p.workerRunning.WithLabelValues(name, worker).Set(1)
			} else {
				p.workerRunning.WithLabelValues(name, worker).Set(0)
			}
		}
	}
}
