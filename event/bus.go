package event

import (
	"sync"
)

type Handler[Key, Event any] interface {
	OnEvent(key Key, e Event)
}

// HandlerFunc is an adapter to allow the use of ordinary
// functions as Handlers.
type HandlerFunc[Key, Event any] func(Key, Event)

// OnEvent calls f(key, e).
func (f HandlerFunc[Key, Event]) OnEvent(key Key, e Event) {
	f(key, e)
}

// Bus fans events out to every registered handler.
//
// Delivery is synchronous, in handler registration order, on the emitting
// goroutine. Two events emitted in sequence by the same goroutine therefore
// reach each handler in that sequence.
type Bus[Key, Event any] struct {
	handlersMu sync.RWMutex
	handlers   []Handler[Key, Event]
}

func NewBus[Key, Event any]() *Bus[Key, Event] {
	return &Bus[Key, Event]{}
}

func (b *Bus[Key, Event]) AddHandler(h Handler[Key, Event]) {
	b.handlersMu.Lock()
	b.handlers = append(b.handlers, h)
	b.handlersMu.Unlock()
}

func (b *Bus[Key, Event]) OnEvent(key Key, e Event) {
	b.handlersMu.RLock()
	// Copy handlers so a handler may register another one
	handlers := make([]Handler[Key, Event], len(b.handlers))
	copy(handlers, b.handlers)
	b.handlersMu.RUnlock()

	for _, h := range handlers {
		h.OnEvent(key, e)
	}
}
