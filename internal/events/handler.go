// internal/events/handler.go
package events

import (
	"context"
)

// Handler processes events of a specific type. Handlers must not block for
// long; they run on the bus goroutines.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}

// Publish sends event through p when p is non-nil, ignoring delivery
// errors. Components take an optional Publisher and call this.
func Publish(p Publisher, event Event) {
	if p != nil {
		_ = p.Publish(event)
	}
}
