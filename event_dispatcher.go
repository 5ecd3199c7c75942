package goSession

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// eventDispatcher hands events to the sink on its own goroutine so a slow
// collaborator never holds up a session transition.
type eventDispatcher struct {
	sink   EventSink
	logger *slog.Logger
	queue  chan Event
	stop   chan struct{}
	// dropWhenFull selects between dropping and blocking on a full queue.
	dropWhenFull bool
	onDrop       func()

	dropped  atomic.Uint64
	stopping atomic.Bool
	stopOnce sync.Once
	done     sync.WaitGroup
}

// newEventDispatcher returns nil when events are disabled; a nil dispatcher
// accepts and ignores every call.
func newEventDispatcher(cfg EventsConfig, sink EventSink, logger *slog.Logger, onDrop func()) *eventDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &eventDispatcher{
		sink:         sink,
		logger:       logger,
		queue:        make(chan Event, size),
		stop:         make(chan struct{}),
		dropWhenFull: cfg.DropIfFull,
		onDrop:       onDrop,
	}
	d.done.Add(1)
	go d.loop()
	return d
}

func (d *eventDispatcher) loop() {
	defer d.done.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *eventDispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver shields the dispatcher from a panicking sink.
func (d *eventDispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event sink panicked", "type", ev.Type, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. When the queue is full it either drops ev or waits for room,
// for ctx to end or for Close.
func (d *eventDispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.stopping.Load() {
		return
	}
	if d.dropWhenFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop()
			}
		}
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and returns once the queued ones were delivered.
func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopping.Store(true)
		close(d.stop)
		d.done.Wait()
	})
}

func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
