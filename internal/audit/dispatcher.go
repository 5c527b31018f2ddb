package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls how events reach the sink.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of holding the request when the
	// queue is full. Events for which Keep reports true are never dropped.
	DropIfFull bool
	Keep       func(Event) bool
	// Now stamps events that arrive without a timestamp.
	Now func() time.Time
}

// Dispatcher queues audit events and delivers them to one sink from a
// single goroutine, in emit order.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event
	idle  chan struct{}

	// mu guards closed and every send on queue, so Close never closes the
	// queue under a sender.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when
// auditing is disabled; a nil Dispatcher ignores every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		idle:  make(chan struct{}),
	}
	go d.deliverAll()
	return d
}

func (d *Dispatcher) deliverAll() {
	defer close(d.idle)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

// deliver isolates the worker from a panicking sink.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.failed.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues event. With DropIfFull a full queue drops the event unless
// Keep claims it; otherwise Emit waits for room or for ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- event:
		return
	default:
	}

	if d.cfg.DropIfFull && (d.cfg.Keep == nil || !d.cfg.Keep(event)) {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events, delivers what is queued and waits for
// the sink to finish.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.idle
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.idle
}

// Dropped counts events lost to a full queue or a cancelled request.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkFailures counts events whose delivery panicked in the sink.
func (d *Dispatcher) SinkFailures() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
