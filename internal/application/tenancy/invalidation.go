package tenancy

import (
	"context"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InvalidationKind names the registry entry an invalidation targets
type InvalidationKind string

const (
	InvalidationKindTenant InvalidationKind = "tenant"
	InvalidationKindHost   InvalidationKind = "host"
	InvalidationKindSlug   InvalidationKind = "slug"
)

// Invalidation drops one registry entry
type Invalidation struct {
	Kind InvalidationKind `json:"kind"`
	Key  string           `json:"key"`
}

// InvalidationFanout forwards invalidations to the other instances sharing the catalog
type InvalidationFanout interface {
	Broadcast(ctx context.Context, invalidations []Invalidation) error
}

// Apply drops the entry named by inv. Unknown kinds and malformed keys are ignored.
func (r *Registry) Apply(inv Invalidation) {
	switch inv.Kind {
	case InvalidationKindTenant:
		if id, err := uuid.Parse(inv.Key); err == nil {
			r.InvalidateTenant(id)
		}
	case InvalidationKindHost:
		r.InvalidateHost(inv.Key)
	case InvalidationKindSlug:
		r.InvalidateSlug(inv.Key)
	}
}

// CacheInvalidationHandler keeps the Registry consistent with catalog writes
type CacheInvalidationHandler struct {
	registry *Registry
	fanout   InvalidationFanout
	logger   *zap.Logger
}

// NewCacheInvalidationHandler creates a new CacheInvalidationHandler.
// fanout may be nil for a single instance.
func NewCacheInvalidationHandler(registry *Registry, fanout InvalidationFanout, logger *zap.Logger) *CacheInvalidationHandler {
	return &CacheInvalidationHandler{registry: registry, fanout: fanout, logger: logger}
}

// EventTypes returns the catalog events that affect cached entries
func (h *CacheInvalidationHandler) EventTypes() []string {
	return identity.CatalogEventTypes
}

// Handle invalidates the entries touched by event, locally and on the other instances
func (h *CacheInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	invalidations := invalidationsFor(event)
	if len(invalidations) == 0 {
		h.logger.Debug("Ignoring event", zap.String("event_type", event.EventType()))
		return nil
	}

	for _, inv := range invalidations {
		h.registry.Apply(inv)
	}

	if h.fanout != nil {
		if err := h.fanout.Broadcast(ctx, invalidations); err != nil {
			// Other instances converge when their cache TTL expires
			h.logger.Warn("Failed to broadcast registry invalidation",
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func invalidationsFor(event shared.DomainEvent) []Invalidation {
	tenant := Invalidation{Kind: InvalidationKindTenant, Key: event.TenantID().String()}

	switch e := event.(type) {
	case *identity.TenantCreatedEvent:
		return []Invalidation{tenant, {Kind: InvalidationKindSlug, Key: e.Slug}}
	case *identity.TenantStatusChangedEvent:
		return []Invalidation{tenant}
	case *identity.TenantSlugChangedEvent:
		return []Invalidation{
			tenant,
			{Kind: InvalidationKindSlug, Key: e.OldSlug},
			{Kind: InvalidationKindSlug, Key: e.NewSlug},
		}
	case *identity.TenantDomainAddedEvent:
		return []Invalidation{{Kind: InvalidationKindHost, Key: e.Host}}
	case *identity.TenantDomainRemovedEvent:
		return []Invalidation{{Kind: InvalidationKindHost, Key: e.Host}}
	}
	return nil
}
