package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/shared"
)

const recentInvoiceLimit = 12

// SubscriptionQueryService reads billing state from a bound tenant namespace
type SubscriptionQueryService struct{}

// NewSubscriptionQueryService creates a new SubscriptionQueryService
func NewSubscriptionQueryService() *SubscriptionQueryService {
	return &SubscriptionQueryService{}
}

// GetSubscription returns the subscription, the caller's roles and the latest invoices.
// A tenant that never received a billing event reports state "none".
func (s *SubscriptionQueryService) GetSubscription(ctx context.Context, repos tenancy.TenantRepositories, principalID uuid.UUID) (*SubscriptionResponse, error) {
	resp := &SubscriptionResponse{State: "none"}

	sub, err := repos.Subscriptions().Get(ctx)
	switch {
	case errors.Is(err, shared.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	default:
		resp.PlanCode = sub.PlanCode
		resp.State = string(sub.State)
		resp.CurrentPeriodEnd = sub.CurrentPeriodEnd
		resp.LastEventID = sub.LastEventID
		lastEventAt := sub.LastEventAt
		resp.LastEventAt = &lastEventAt
	}

	grants, err := repos.RoleGrants().FindByPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load role grants: %w", err)
	}
	resp.Roles = roleNames(grants)

	lines, err := repos.InvoiceLines().FindAll(ctx, shared.Filter{Page: 1, PageSize: recentInvoiceLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice lines: %w", err)
	}
	resp.Invoices = make([]InvoiceLineResponse, 0, len(lines))
	for _, line := range lines {
		resp.Invoices = append(resp.Invoices, ToInvoiceLineResponse(line))
	}

	return resp, nil
}

// HasRole reports whether the principal holds role in the bound tenant
func (s *SubscriptionQueryService) HasRole(ctx context.Context, repos tenancy.TenantRepositories, principalID uuid.UUID, role string) (bool, error) {
	grants, err := repos.RoleGrants().FindByPrincipal(ctx, principalID)
	if err != nil {
		return false, fmt.Errorf("failed to load role grants: %w", err)
	}
	for _, g := range grants {
		if g.Role.String() == role {
			return true, nil
		}
	}
	return false, nil
}
