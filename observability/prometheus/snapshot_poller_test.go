package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/RDFacendola/go-task-graph/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type schedulerStub struct {
	stats   core.SchedulerStats
	workers []core.WorkerStats
}

func (s schedulerStub) Stats() core.SchedulerStats      { return s.stats }
func (s schedulerStub) WorkerStats() []core.WorkerStats { return s.workers }

func TestSnapshotPoller_CollectsSchedulerStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddScheduler("sched-a", schedulerStub{
		stats: core.SchedulerStats{
			Workers: 4,
			Queued:  3,
			Active:  2,
			Delayed: 1,
			Running: true,
		},
		workers: []core.WorkerStats{
			{ID: 0, Queued: 2, Running: true},
			{ID: 1, Queued: 1, Running: false},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		queued := testutil.ToFloat64(poller.schedulerQueued.WithLabelValues("sched-a"))
		active := testutil.ToFloat64(poller.schedulerActive.WithLabelValues("sched-a"))
		return queued == 3 && active == 2
	})

	if got := testutil.ToFloat64(poller.schedulerWorkers.WithLabelValues("sched-a")); got != 4 {
		t.Fatalf("worker count gauge = %v, want 4", got)
	}
	if got := testutil.ToFloat64(poller.schedulerRunning.WithLabelValues("sched-a")); got != 1 {
		t.Fatalf("running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.workerQueued.WithLabelValues("sched-a", "0")); got != 2 {
		t.Fatalf("worker 0 queued gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(poller.workerRunning.WithLabelValues("sched-a", "1")); got != 0 {
		t.Fatalf("worker 1 running gauge = %v, want 0", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
