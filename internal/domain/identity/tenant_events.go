package identity

import (
	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// Event type constants
const (
	EventTypeTenantCreated       = "TenantCreated"
	EventTypeTenantStatusChanged = "TenantStatusChanged"
	EventTypeTenantSlugChanged   = "TenantSlugChanged"
	EventTypeTenantDomainAdded   = "TenantDomainAdded"
	EventTypeTenantDomainRemoved = "TenantDomainRemoved"
)

// CatalogEventTypes lists every event that changes what the schema registry caches
var CatalogEventTypes = []string{
	EventTypeTenantCreated,
	EventTypeTenantStatusChanged,
	EventTypeTenantSlugChanged,
	EventTypeTenantDomainAdded,
	EventTypeTenantDomainRemoved,
}

// TenantCreatedEvent is published after the tenant and its namespace are committed
type TenantCreatedEvent struct {
	shared.EventMeta
	Slug      string    `json:"slug"`
	Namespace Namespace `json:"namespace"`
	OwnerID   uuid.UUID `json:"owner_id"`
}

// NewTenantCreatedEvent creates a new TenantCreatedEvent
func NewTenantCreatedEvent(tenant *Tenant) *TenantCreatedEvent {
	return &TenantCreatedEvent{
		EventMeta: shared.NewEventMeta(EventTypeTenantCreated, tenant.ID),
		Slug:      tenant.Slug,
		Namespace: tenant.Namespace,
		OwnerID:   tenant.OwnerID,
	}
}

// TenantStatusChangedEvent is published when a tenant is suspended, reactivated or deleted
type TenantStatusChangedEvent struct {
	shared.EventMeta
	Slug      string       `json:"slug"`
	OldStatus TenantStatus `json:"old_status"`
	NewStatus TenantStatus `json:"new_status"`
}

// NewTenantStatusChangedEvent creates a new TenantStatusChangedEvent
func NewTenantStatusChangedEvent(tenant *Tenant, oldStatus, newStatus TenantStatus) *TenantStatusChangedEvent {
	return &TenantStatusChangedEvent{
		EventMeta: shared.NewEventMeta(EventTypeTenantStatusChanged, tenant.ID),
		Slug:      tenant.Slug,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// TenantSlugChangedEvent is published when the routing key of a tenant changes
type TenantSlugChangedEvent struct {
	shared.EventMeta
	OldSlug string `json:"old_slug"`
	NewSlug string `json:"new_slug"`
}

// NewTenantSlugChangedEvent creates a new TenantSlugChangedEvent
func NewTenantSlugChangedEvent(tenant *Tenant, oldSlug string) *TenantSlugChangedEvent {
	return &TenantSlugChangedEvent{
		EventMeta: shared.NewEventMeta(EventTypeTenantSlugChanged, tenant.ID),
		OldSlug:   oldSlug,
		NewSlug:   tenant.Slug,
	}
}

// TenantDomainAddedEvent is published when a host is mapped to a tenant
type TenantDomainAddedEvent struct {
	shared.EventMeta
	Host string `json:"host"`
}

// NewTenantDomainAddedEvent creates a new TenantDomainAddedEvent
func NewTenantDomainAddedEvent(d *TenantDomain) *TenantDomainAddedEvent {
	return &TenantDomainAddedEvent{
		EventMeta: shared.NewEventMeta(EventTypeTenantDomainAdded, d.TenantID),
		Host:      d.Host,
	}
}

// TenantDomainRemovedEvent is published when a host mapping is removed
type TenantDomainRemovedEvent struct {
	shared.EventMeta
	Host string `json:"host"`
}

// NewTenantDomainRemovedEvent creates a new TenantDomainRemovedEvent
func NewTenantDomainRemovedEvent(d *TenantDomain) *TenantDomainRemovedEvent {
	return &TenantDomainRemovedEvent{
		EventMeta: shared.NewEventMeta(EventTypeTenantDomainRemoved, d.TenantID),
		Host:      d.Host,
	}
}
