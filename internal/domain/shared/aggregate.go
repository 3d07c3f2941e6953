package shared

// BaseAggregateRoot is an entity with an optimistic-lock version and a buffer of
// events raised by state changes that have not been published yet.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	pending []DomainEvent
}

// NewBaseAggregateRoot creates an aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// IncrementVersion records a state change
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
	a.Touch()
}

// Raise buffers event until the change is committed
func (a *BaseAggregateRoot) Raise(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// PendingEvents returns the buffered events without clearing them
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// TakeEvents returns the buffered events and clears the buffer
func (a *BaseAggregateRoot) TakeEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
