package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives delivered events.
type Handler func(Event)

// Bus fans events out to subscribers.
//
// A nil *Bus is valid and discards everything, so services can be
// constructed without one in tests.
type Bus struct {
	logger *slog.Logger
	ch     chan Event

	mu     sync.RWMutex
	subs   map[int]Handler
	nextID int
	closed bool

	dropped atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewBus creates a bus with the given buffer size. A buffer below 1 uses 256.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer < 1 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		ch:     make(chan Event, buffer),
		subs:   make(map[int]Handler),
		done:   make(chan struct{}),
	}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (cancel func()) {
	if b == nil || h == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	b.Start()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Start launches the delivery goroutine. It is idempotent and is called
// implicitly by Subscribe and Emit.
func (b *Bus) Start() {
	if b == nil {
		return
	}
	b.startOnce.Do(func() {
		go b.run()
	})
}

func (b *Bus) run() {
	defer close(b.done)
	for ev := range b.ch {
		b.mu.RLock()
		handlers := make([]Handler, 0, len(b.subs))
		for _, h := range b.subs {
			handlers = append(handlers, h)
		}
		b.mu.RUnlock()

		for _, h := range handlers {
			b.deliver(h, ev)
		}
	}
}

// deliver isolates subscriber panics from the delivery loop.
func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "kind", ev.Kind, "panic", r)
		}
	}()
	h(ev)
}

// Emit queues ev for delivery. If the buffer is full the event is dropped.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.Start()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- ev:
	default:
		n := b.dropped.Add(1)
		// first drop, then every 1000th
		if n == 1 || n%1000 == 0 {
			b.logger.Debug("event bus dropped events (buffer full)", "dropped", n, "kind", ev.Kind)
		}
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (b *Bus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Close stops accepting events, drains the queue and waits for delivery to
// finish.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.Start()
		b.mu.Lock()
		b.closed = true
		close(b.ch)
		b.mu.Unlock()
		<-b.done
	})
}
