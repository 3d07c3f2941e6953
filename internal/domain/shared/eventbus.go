package shared

import "context"

// EventHandler reacts to published events
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler subscribes to by default; empty means all
	EventTypes() []string
}

// EventPublisher publishes committed events
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}
