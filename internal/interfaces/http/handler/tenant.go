package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/interfaces/http/middleware"
)

// TenantProvisioner runs create_tenant
type TenantProvisioner interface {
	CreateTenant(ctx context.Context, input tenancy.CreateTenantInput) (*tenancy.TenantResponse, error)
}

// TenantStatusReader reports the catalog status of the tenant behind a host
type TenantStatusReader interface {
	Status(ctx context.Context, host string) (*tenancy.TenantStatusResponse, error)
}

// TenantHandler serves tenant creation and the bound tenant's own view
type TenantHandler struct {
	BaseHandler
	provisioning TenantProvisioner
	status       TenantStatusReader
}

// NewTenantHandler creates a new TenantHandler
func NewTenantHandler(provisioning TenantProvisioner, status TenantStatusReader) *TenantHandler {
	return &TenantHandler{
		provisioning: provisioning,
		status:       status,
	}
}

// CreateTenantRequest is the body of POST /tenants
type CreateTenantRequest struct {
	Slug string `json:"slug" binding:"required,min=3,max=63"`
	// OwnerID lets a platform administrator create a tenant for someone else
	OwnerID string `json:"owner_id" binding:"omitempty,uuid"`
}

// CurrentTenantResponse describes the tenant the request is bound to
type CurrentTenantResponse struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	OwnerID   uuid.UUID `json:"owner_id"`
	IsOwner   bool      `json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Create provisions a tenant owned by the caller
func (h *TenantHandler) Create(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	ownerID := principal.ID
	if req.OwnerID != "" {
		requested := uuid.MustParse(req.OwnerID)
		if requested != principal.ID && !principal.PlatformAdmin {
			h.Forbidden(c, "Only platform administrators can create tenants for another owner")
			return
		}
		ownerID = requested
	}

	tenant, err := h.provisioning.CreateTenant(c.Request.Context(), tenancy.CreateTenantInput{
		Slug:    strings.TrimSpace(req.Slug),
		OwnerID: ownerID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, tenant)
}

// Current returns the tenant bound to this request, read from its own namespace
func (h *TenantHandler) Current(c *gin.Context) {
	repos, ok := middleware.GetTenantRepositories(c)
	if !ok {
		h.InternalError(c, "Tenant binding missing")
		return
	}

	descriptor, err := repos.Descriptor().Get(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	principal, _ := middleware.GetPrincipal(c)
	h.Success(c, CurrentTenantResponse{
		ID:        descriptor.TenantID,
		Slug:      descriptor.Slug,
		Status:    "active",
		OwnerID:   descriptor.OwnerID,
		IsOwner:   principal.ID == descriptor.OwnerID,
		CreatedAt: descriptor.CreatedAt,
	})
}

// PublicStatus reports whether the tenant behind the request host is usable.
// Suspended tenants are reported as such so status pages can explain it;
// unknown and deleted tenants are 404.
func (h *TenantHandler) PublicStatus(c *gin.Context) {
	status, err := h.status.Status(c.Request.Context(), middleware.RequestHost(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
