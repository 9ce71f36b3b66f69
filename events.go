package sparsecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// MaxEventTypes is the maximum number of distinct event types a Registry can
// dispatch.
const MaxEventTypes = 256

// EntityCreated is published by a Registry right after it allocates an
// entity, before CreateEntityWith, Clone or a Builder attach components.
type EntityCreated struct {
	Entity Entity
}

// EntityDestroyed is published by Destroy while the entity is still alive
// and holds its components. Clear does not publish it.
type EntityDestroyed struct {
	Entity Entity
}

// eventBus dispatches events to handlers by the event's type. Handlers run
// synchronously on the publishing goroutine in subscription order.
type eventBus struct {
	types    map[reflect.Type]uint8
	handlers [][]any
}

func (bus *eventBus) typeID(t reflect.Type) uint8 {
	if bus.types == nil {
		bus.types = make(map[reflect.Type]uint8)
	}
	if id, ok := bus.types[t]; ok {
		return id
	}
	if len(bus.handlers) >= MaxEventTypes {
		panic(eris.Errorf("sparsecs: too many event types, cannot add %s", t))
	}
	id := uint8(len(bus.handlers))
	bus.types[t] = id
	bus.handlers = append(bus.handlers, make([]any, 0, 4))
	return id
}

func publish[T any](bus *eventBus, event T) {
	if len(bus.types) == 0 {
		return
	}
	id, ok := bus.types[reflect.TypeFor[T]()]
	if !ok {
		return
	}
	for _, h := range bus.handlers[id] {
		h.(func(T))(event)
	}
}

// Subscribe registers handler to be called for every event of type T
// published on r, including the registry's own EntityCreated and
// EntityDestroyed events.
//
// Parameters:
//   - r: The Registry whose events to receive.
//   - handler: A function that takes a single argument of type T.
func Subscribe[T any](r *Registry, handler func(T)) {
	if handler == nil {
		return
	}
	id := r.events.typeID(reflect.TypeFor[T]())
	r.events.handlers[id] = append(r.events.handlers[id], handler)
}

// Publish delivers event to every handler subscribed to T on r. It does not
// allocate.
func Publish[T any](r *Registry, event T) {
	publish(&r.events, event)
}

// Unsubscribe drops every handler for T.
func Unsubscribe[T any](r *Registry) {
	if id, ok := r.events.types[reflect.TypeFor[T]()]; ok {
		clear(r.events.handlers[id])
		r.events.handlers[id] = r.events.handlers[id][:0]
	}
}
