package anchor

import (
	"sync"

	escrowconnect "github.com/stellar-connect/escrow-go"
)

// HookEvent represents a named lifecycle event that integrators can subscribe to.
type HookEvent string

// Hook event constants represent the delivery lifecycle events.
const (
	HookDeliveryIssued     HookEvent = "delivery:issued"
	HookDeliveryCompleted  HookEvent = "delivery:completed"
	HookDeliveryDiscovered HookEvent = "delivery:discovered"
	HookDeliveryClaimed    HookEvent = "delivery:claimed"
	HookDeliveryFailed     HookEvent = "delivery:failed"
)

// HookRegistry manages lifecycle event handlers for delivery state changes.
// It implements the observer pattern, allowing integrators to register
// callbacks that execute sequentially when delivery lifecycle events occur.
//
// Handlers are stored per event and execute in registration order.
// The registry is thread-safe for concurrent registration and triggering.
type HookRegistry struct {
	handlers map[HookEvent][]func(*escrowconnect.Delivery)
	mu       sync.RWMutex
}

// NewHookRegistry creates a new lifecycle hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		handlers: make(map[HookEvent][]func(*escrowconnect.Delivery)),
	}
}

// On registers a handler function for a specific lifecycle event.
// Multiple handlers can be registered for the same event and will execute
// sequentially in registration order when the event is triggered.
//
// The handler receives a pointer to the Delivery that triggered the event.
// Handlers should be quick, non-blocking operations. If a handler panics,
// the panic will propagate and prevent subsequent handlers from executing.
func (r *HookRegistry) On(event HookEvent, handler func(*escrowconnect.Delivery)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = append(r.handlers[event], handler)
}

// Trigger executes all registered handlers for a specific lifecycle event,
// passing the delivery that triggered the event. Handlers execute sequentially
// in registration order.
func (r *HookRegistry) Trigger(event HookEvent, delivery *escrowconnect.Delivery) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers, ok := r.handlers[event]
	if !ok {
		return
	}

	for _, handler := range handlers {
		handler(delivery)
	}
}
