package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

// Runner is the part of Service the dispatcher drives.
type Runner interface {
	StartRun(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ProcessRun(ctx context.Context, id uuid.UUID) (*models.JobRunSummary, error)
	AbortRun(ctx context.Context, id uuid.UUID) error
}

// Dispatcher hands started runs to a fixed pool of in-process workers.
type Dispatcher struct {
	runner  Runner
	workers int
	queue   chan uuid.UUID

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with the given pool and queue sizes.
func NewDispatcher(runner Runner, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		runner:  runner,
		workers: workers,
		queue:   make(chan uuid.UUID, queueSize),
	}
}

// Trigger starts a run synchronously, so unknown or busy jobs are reported to
// the caller, and then queues it for a worker. A run that cannot be queued is
// released again.
func (d *Dispatcher) Trigger(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := d.runner.StartRun(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := d.enqueue(id); err != nil {
		if aerr := d.runner.AbortRun(context.WithoutCancel(ctx), id); aerr != nil {
			slog.Error("releasing unqueued run", "job_id", id, "error", aerr)
		}
		return nil, err
	}
	return job, nil
}

func (d *Dispatcher) enqueue(id uuid.UUID) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the workers until ctx is done. It then stops accepting runs,
// waits for in-flight runs and releases runs that never reached a worker.
// A Dispatcher runs once; later calls return ErrDispatcherStarted.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrDispatcherStarted
	}
	d.started = true
	d.mu.Unlock()

	slog.Info("run dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}

	<-ctx.Done()

	d.mu.Lock()
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()

	released := 0
	for id := range d.queue {
		if err := d.runner.AbortRun(context.WithoutCancel(ctx), id); err != nil {
			slog.Error("releasing queued run", "job_id", id, "error", err)
			continue
		}
		released++
	}
	slog.Info("run dispatcher stopped", "released_runs", released)
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case id, ok := <-d.queue:
			if !ok {
				return
			}
			d.process(context.WithoutCancel(ctx), id)
		}
	}
}

// process runs one job to completion. A panic releases the job.
func (d *Dispatcher) process(ctx context.Context, id uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in run", "error", fmt.Sprint(r), "job_id", id)
			if err := d.runner.AbortRun(ctx, id); err != nil {
				slog.Error("releasing panicked run", "job_id", id, "error", err)
			}
		}
	}()

	if _, err := d.runner.ProcessRun(ctx, id); err != nil {
		slog.Error("job run failed", "job_id", id, "error", err)
	}
}
