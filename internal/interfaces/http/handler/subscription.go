package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/tenantcore/backend/internal/application/billing"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/interfaces/http/middleware"
)

// SubscriptionReader reads billing state from a bound namespace
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, repos tenancy.TenantRepositories, principalID uuid.UUID) (*billingapp.SubscriptionResponse, error)
}

// SubscriptionHandler exposes the bound tenant's subscription
type SubscriptionHandler struct {
	BaseHandler
	query SubscriptionReader
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(query SubscriptionReader) *SubscriptionHandler {
	return &SubscriptionHandler{query: query}
}

// Get returns the plan, state, the caller's roles and recent invoices
func (h *SubscriptionHandler) Get(c *gin.Context) {
	repos, ok := middleware.GetTenantRepositories(c)
	if !ok {
		h.InternalError(c, "Tenant binding missing")
		return
	}
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}

	sub, err := h.query.GetSubscription(c.Request.Context(), repos, principal.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}
