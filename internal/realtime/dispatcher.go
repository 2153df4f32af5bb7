package realtime

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Handler receives every inbound event. Handlers run synchronously on the
// connection's read goroutine and must not block; anything slow (a REST
// refetch, disk I/O) belongs in a goroutine the handler spawns.
type Handler func(protocol.Event)

type handlerEntry struct {
	id uint64
	fn Handler
}

// dispatcher fans each inbound event out to all registered handlers in
// registration order. A panicking handler is logged and does not stop
// delivery to the remaining handlers.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers []handlerEntry
	nextID   uint64
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{logger: logger}
}

// add registers a handler and returns its remove function. The remove
// function is idempotent.
func (d *dispatcher) add(fn Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers = append(d.handlers, handlerEntry{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.handlers = slices.DeleteFunc(d.handlers, func(h handlerEntry) bool {
			return h.id == id
		})
	}
}

func (d *dispatcher) dispatch(ev protocol.Event) {
	d.mu.Lock()
	handlers := slices.Clone(d.handlers)
	d.mu.Unlock()

	for _, h := range handlers {
		d.invoke(h, ev)
	}
}

func (d *dispatcher) invoke(h handlerEntry, ev protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", "kind", ev.Kind, "panic", r)
		}
	}()
	h.fn(ev)
}
