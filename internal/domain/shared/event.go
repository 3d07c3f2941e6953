package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about one tenant's catalog entry. Events are only published
// after the transaction that recorded them has committed.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	TenantID() uuid.UUID
}

// EventMeta carries the identifying fields every event shares. Embed it by value.
type EventMeta struct {
	ID     uuid.UUID `json:"id"`
	Type   string    `json:"type"`
	At     time.Time `json:"occurred_at"`
	Tenant uuid.UUID `json:"tenant_id"`
}

// NewEventMeta stamps a new event of eventType about tenantID
func NewEventMeta(eventType string, tenantID uuid.UUID) EventMeta {
	return EventMeta{
		ID:     uuid.New(),
		Type:   eventType,
		At:     time.Now().UTC(),
		Tenant: tenantID,
	}
}

func (m EventMeta) EventID() uuid.UUID    { return m.ID }
func (m EventMeta) EventType() string     { return m.Type }
func (m EventMeta) OccurredAt() time.Time { return m.At }
func (m EventMeta) TenantID() uuid.UUID   { return m.Tenant }
