package tenancy

import (
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/identity"
)

// TenantResponse is the external view of a catalog tenant
type TenantResponse struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Domains   []string  `json:"domains,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToTenantResponse converts a domain tenant to a response
func ToTenantResponse(t *identity.Tenant, domains []identity.TenantDomain) TenantResponse {
	resp := TenantResponse{
		ID:        t.ID,
		Slug:      t.Slug,
		Status:    string(t.Status),
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for _, d := range domains {
		resp.Domains = append(resp.Domains, d.Host)
	}
	return resp
}

// TenantStatusResponse is what middleware and status pages need to gate access
type TenantStatusResponse struct {
	ID     uuid.UUID `json:"id"`
	Slug   string    `json:"slug"`
	Status string    `json:"status"`
}

// CreateTenantInput contains input for create_tenant
type CreateTenantInput struct {
	Slug    string
	OwnerID uuid.UUID
}

// TenantListResult is a page of tenants
type TenantListResult struct {
	Tenants []TenantResponse `json:"tenants"`
	Total   int64            `json:"total"`
}

// DomainResponse is the external view of a host mapping
type DomainResponse struct {
	Host      string    `json:"host"`
	TenantID  uuid.UUID `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}
