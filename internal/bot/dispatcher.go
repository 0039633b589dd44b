package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultQueueSize is the number of events buffered ahead of the dispatcher.
const DefaultQueueSize = 4096

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher processes gateway events one at a time on a single goroutine.
// Gateway callbacks only enqueue.
type Dispatcher struct {
	queue   chan job
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher with room for size pending events.
func NewDispatcher(size int, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Dispatcher{
		queue:  make(chan job, size),
		logger: logger.Named("dispatcher"),
	}
}

// Submit enqueues an event. It reports false when the queue is full and the
// event was dropped.
func (d *Dispatcher) Submit(name string, run func(ctx context.Context) error) bool {
	select {
	case d.queue <- job{name: name, run: run}:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Event queue full, dropping event",
			zap.String("event", name),
			zap.Int64("dropped", d.dropped.Load()))

		return false
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run processes events until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Dispatcher started")
	defer d.logger.Info("Dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.process(ctx, j)
		}
	}
}

// process runs a single event and recovers from panics in its handler.
func (d *Dispatcher) process(ctx context.Context, j job) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic in event handler",
				zap.String("event", j.name),
				zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := j.run(ctx); err != nil {
		d.logger.Error("Failed to handle event",
			zap.String("event", j.name),
			zap.Error(err))

		return
	}

	d.logger.Debug("Event handled",
		zap.String("event", j.name),
		zap.Duration("duration", time.Since(start)))
}
