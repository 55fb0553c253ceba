package webhook

import (
	"context"
	"sync"

	"github.com/smallbiznis/rentpay/internal/config"
	obsmetrics "github.com/smallbiznis/rentpay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Task is one unit of post-acknowledgement work.
type Task struct {
	Ctx context.Context
	Run func(ctx context.Context)
}

// Dispatcher runs tasks on a fixed worker pool fed by a bounded queue.
type Dispatcher struct {
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
	workers    int

	mu      sync.RWMutex
	queue   chan Task
	started bool
	closed  bool
	wg      sync.WaitGroup
}

type DispatcherParams struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	workers := p.Cfg.DispatchWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := p.Cfg.DispatchQueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		log:        log.Named("payment.dispatcher"),
		obsMetrics: p.ObsMetrics,
		workers:    workers,
		queue:      make(chan Task, size),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Stop closes the queue and waits for queued tasks to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for task := range d.queue {
			d.obsMetrics.AddDispatchQueued(task.Ctx, -1)
			d.run(task)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.log.Info("dispatcher drained")
		return nil
	case <-ctx.Done():
		d.log.Warn("dispatcher stop timed out", zap.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

// Submit enqueues the task. When the queue is full, or the dispatcher is
// stopped, the task runs on the caller's goroutine.
func (d *Dispatcher) Submit(task Task) {
	if task.Run == nil {
		return
	}
	if task.Ctx == nil {
		task.Ctx = context.Background()
	}

	d.mu.RLock()
	if !d.closed {
		select {
		case d.queue <- task:
			d.mu.RUnlock()
			d.obsMetrics.AddDispatchQueued(task.Ctx, 1)
			return
		default:
		}
	}
	d.mu.RUnlock()

	d.log.Warn("dispatch queue unavailable, running task inline")
	d.run(task)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for task := range d.queue {
		d.obsMetrics.AddDispatchQueued(task.Ctx, -1)
		d.run(task)
	}
}

func (d *Dispatcher) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch task panicked", zap.Any("panic", r))
		}
	}()
	task.Run(task.Ctx)
}

// registerDispatcher takes the service so the store and cache it records
// through are built, and their stop hooks appended, before this hook. fx stops
// in reverse order, so the queue drains while they are still open.
func registerDispatcher(lc fx.Lifecycle, svc *Service) {
	d := svc.dispatcher
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: d.Stop,
	})
}
