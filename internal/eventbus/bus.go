// Package eventbus moves emission records off the dispatch path. Events are
// queued on a buffered channel and handed to a small worker pool, so a slow
// journal never stalls an emit.
package eventbus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shaharia-lab/emitter/internal/storage"
)

const (
	defaultWorkers    = 3
	defaultBufferSize = 256
)

// EventBus is the interface for publishing events and managing subscribers.
type EventBus interface {
	// Publish enqueues an emission record. It never blocks: if the buffer is
	// full or the bus is closed the event is dropped and reported.
	Publish(eventType string, e *storage.Emission)

	// Subscribe registers a listener that will be called for every published event.
	// Subscribe must be called before the first Publish.
	Subscribe(listener Listener)

	// Close stops accepting new events and waits for all pending events to be processed.
	Close()
}

// Option configures an in-memory bus.
type Option func(*inMemoryBus)

// WithBufferSize sets the queue capacity. Values <= 0 are ignored.
func WithBufferSize(n int) Option {
	return func(b *inMemoryBus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets the logger used for drops and listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *inMemoryBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithDropHandler registers a callback invoked for every dropped event.
func WithDropHandler(fn DropFunc) Option {
	return func(b *inMemoryBus) { b.onDrop = fn }
}

type inMemoryBus struct {
	ch         chan Event
	listeners  []Listener
	mu         sync.RWMutex
	wg         sync.WaitGroup
	workers    int
	bufferSize int
	closed     bool
	logger     *slog.Logger
	onDrop     DropFunc
}

// New creates a new in-memory EventBus with the specified number of worker goroutines.
// If workers is <= 0, defaultWorkers (3) is used.
func New(workers int, opts ...Option) EventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	b := &inMemoryBus{
		workers:    workers,
		bufferSize: defaultBufferSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ch = make(chan Event, b.bufferSize)
	b.startWorkers()
	return b
}

func (b *inMemoryBus) startWorkers() {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for e := range b.ch {
				b.dispatch(e)
			}
		}()
	}
}

// dispatch calls all registered listeners for the given event. A panicking
// listener is logged and does not prevent the others from running.
func (b *inMemoryBus) dispatch(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("eventbus listener panicked", "event_type", e.Type, "panic", r)
				}
			}()
			l(e)
		}()
	}
}

func (b *inMemoryBus) Publish(eventType string, emission *storage.Emission) {
	e := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Emission:  emission,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.drop(e, "bus closed")
		return
	}

	select {
	case b.ch <- e:
	default:
		b.drop(e, "buffer full")
	}
}

func (b *inMemoryBus) drop(e Event, reason string) {
	b.logger.Warn("eventbus dropping event", "event_type", e.Type, "reason", reason)
	if b.onDrop != nil {
		b.onDrop(e)
	}
}

func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Close drains and closes the event channel, then waits for all workers to
// finish. Calling Close more than once is safe.
func (b *inMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()
	b.wg.Wait()
}
