package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/tenantcore/backend/internal/application/billing"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/auth"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// TenantAdmin is the platform-level tenant administration surface
type TenantAdmin interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*tenancy.TenantResponse, error)
	ListTenants(ctx context.Context, status string, filter shared.Filter) (*tenancy.TenantListResult, error)
	SuspendTenant(ctx context.Context, id uuid.UUID) (*tenancy.TenantResponse, error)
	ReactivateTenant(ctx context.Context, id uuid.UUID) (*tenancy.TenantResponse, error)
	DeleteTenant(ctx context.Context, id uuid.UUID) error
	RenameTenantSlug(ctx context.Context, id uuid.UUID, slug string) (*tenancy.TenantResponse, error)
	AddDomain(ctx context.Context, tenantID uuid.UUID, host string) (*tenancy.DomainResponse, error)
	RemoveDomain(ctx context.Context, tenantID uuid.UUID, host string) error
	ListDomains(ctx context.Context, tenantID uuid.UUID) ([]tenancy.DomainResponse, error)
	AddMember(ctx context.Context, tenantID, principalID uuid.UUID) error
}

// BillingReconciler lets operators inspect and retry ledger entries
type BillingReconciler interface {
	ListEvents(ctx context.Context, status string, filter shared.Filter) (*billingapp.EventRecordListResult, error)
	GetEvent(ctx context.Context, eventID string) (*billingapp.EventRecordResponse, error)
	Reprocess(ctx context.Context, eventID string) (*billingapp.IngestResult, error)
}

// AdminHandler serves /admin routes; every route requires a platform administrator
type AdminHandler struct {
	BaseHandler
	tenants     TenantAdmin
	billing     BillingReconciler
	revocations auth.RevocationList
	sessionTTL  time.Duration
}

// NewAdminHandler creates a new AdminHandler. sessionTTL bounds how long a
// principal revocation must be remembered, normally the access token lifetime.
func NewAdminHandler(tenants TenantAdmin, billing BillingReconciler, revocations auth.RevocationList, sessionTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		tenants:     tenants,
		billing:     billing,
		revocations: revocations,
		sessionTTL:  sessionTTL,
	}
}

// RenameSlugRequest is the body of PUT /admin/tenants/:id/slug
type RenameSlugRequest struct {
	Slug string `json:"slug" binding:"required,min=3,max=63"`
}

// AddDomainRequest is the body of POST /admin/tenants/:id/domains
type AddDomainRequest struct {
	Host string `json:"host" binding:"required,max=253"`
}

// AddMemberRequest is the body of POST /admin/tenants/:id/members
type AddMemberRequest struct {
	PrincipalID string `json:"principal_id" binding:"required,uuid"`
}

// ListTenants pages through the catalog, optionally filtered by status
func (h *AdminHandler) ListTenants(c *gin.Context) {
	req, filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	result, err := h.tenants.ListTenants(c.Request.Context(), req.Status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Tenants, result.Total, filter.Page, filter.PageSize)
}

// GetTenant returns one catalog tenant with its domains
func (h *AdminHandler) GetTenant(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	tenant, err := h.tenants.GetTenant(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tenant)
}

// SuspendTenant blocks access to a tenant; billing keeps flowing
func (h *AdminHandler) SuspendTenant(c *gin.Context) {
	h.changeStatus(c, h.tenants.SuspendTenant, "Tenant suspended")
}

// ReactivateTenant restores access to a suspended tenant
func (h *AdminHandler) ReactivateTenant(c *gin.Context) {
	h.changeStatus(c, h.tenants.ReactivateTenant, "Tenant reactivated")
}

func (h *AdminHandler) changeStatus(c *gin.Context, change func(context.Context, uuid.UUID) (*tenancy.TenantResponse, error), msg string) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	tenant, err := change(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, msg, zap.String("target_tenant_id", id.String()))
	h.Success(c, tenant)
}

// DeleteTenant marks a tenant deleted and releases its hosts. The namespace is kept.
func (h *AdminHandler) DeleteTenant(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.tenants.DeleteTenant(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, "Tenant deleted", zap.String("target_tenant_id", id.String()))
	h.NoContent(c)
}

// RenameSlug swaps the tenant's routing slug
func (h *AdminHandler) RenameSlug(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req RenameSlugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	tenant, err := h.tenants.RenameTenantSlug(c.Request.Context(), id, req.Slug)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, "Tenant slug renamed", zap.String("target_tenant_id", id.String()), zap.String("slug", tenant.Slug))
	h.Success(c, tenant)
}

// ListDomains returns the custom hosts of a tenant
func (h *AdminHandler) ListDomains(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	domains, err := h.tenants.ListDomains(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, domains)
}

// AddDomain maps a custom host to the tenant
func (h *AdminHandler) AddDomain(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req AddDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	domain, err := h.tenants.AddDomain(c.Request.Context(), id, req.Host)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, "Tenant domain added", zap.String("target_tenant_id", id.String()), zap.String("host", domain.Host))
	h.Created(c, domain)
}

// RemoveDomain unmaps a custom host
func (h *AdminHandler) RemoveDomain(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	host := c.Param("host")
	if err := h.tenants.RemoveDomain(c.Request.Context(), id, host); err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, "Tenant domain removed", zap.String("target_tenant_id", id.String()), zap.String("host", host))
	h.NoContent(c)
}

// AddMember grants a principal membership of the tenant
func (h *AdminHandler) AddMember(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	principalID := uuid.MustParse(req.PrincipalID)
	if err := h.tenants.AddMember(c.Request.Context(), id, principalID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, "Tenant member added", zap.String("target_tenant_id", id.String()), zap.String("member_id", principalID.String()))
	h.NoContent(c)
}

// ListBillingEvents pages through ledger entries by status (received, applied, rejected)
func (h *AdminHandler) ListBillingEvents(c *gin.Context) {
	req, filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	result, err := h.billing.ListEvents(c.Request.Context(), req.Status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Events, result.Total, filter.Page, filter.PageSize)
}

// GetBillingEvent returns one ledger entry
func (h *AdminHandler) GetBillingEvent(c *gin.Context) {
	event, err := h.billing.GetEvent(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, event)
}

// ReprocessBillingEvent retries a received or rejected entry with its stored payload
func (h *AdminHandler) ReprocessBillingEvent(c *gin.Context) {
	eventID := c.Param("event_id")
	result, err := h.billing.Reprocess(c.Request.Context(), eventID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, "Billing event reprocessed", zap.String("event_id", eventID), zap.String("outcome", string(result.Outcome)))
	h.Success(c, result)
}

// RevokeSessions invalidates every token issued to a principal so far
func (h *AdminHandler) RevokeSessions(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.revocations.RevokePrincipal(c.Request.Context(), id.String(), h.sessionTTL); err != nil {
		h.HandleError(c, err)
		return
	}
	h.audit(c, "Principal sessions revoked", zap.String("target_principal_id", id.String()))
	h.NoContent(c)
}

func (h *AdminHandler) audit(c *gin.Context, msg string, fields ...zap.Field) {
	if admin, ok := middleware.GetPrincipal(c); ok {
		fields = append(fields, zap.String("admin_id", admin.ID.String()))
	}
	logger.L(c.Request.Context()).Info(msg, fields...)
}
