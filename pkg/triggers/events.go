package triggers

import (
	"reflect"
	"sync"
	"time"

	"github.com/tcmartin/flowexec/pkg/models"
)

// EventBus is an in-process publish/subscribe fan-out. Handlers run on
// their own goroutine per publish so a slow handler never blocks the
// publisher.
type EventBus struct {
	mu       sync.RWMutex
	handlers []func(models.Event)
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a handler for every published event.
func (b *EventBus) Subscribe(handler func(models.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish delivers the event to all handlers. A zero timestamp is
// stamped with the current time.
func (b *EventBus) Publish(evt models.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]func(models.Event), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		go handler(evt)
	}
}

// matchesEvent reports whether an event satisfies a trigger's type and
// field-equality filter.
func matchesEvent(t models.EventTrigger, evt models.Event) bool {
	if t.EventType != evt.Type {
		return false
	}
	for key, want := range t.Filter {
		got, ok := evt.Fields[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
