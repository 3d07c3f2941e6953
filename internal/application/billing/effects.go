package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// effect applies one event inside the bound tenant transaction.
// Returning an error wrapping shared.ErrRejected rolls back and rejects the event.
type effect struct {
	repos   tenancy.TenantRepositories
	mapper  *billing.PlanRoleMapper
	payload *billing.Payload
	eventID string
	owner   uuid.UUID
	log     *logger.ContextLogger
}

func (e *effect) apply(ctx context.Context, eventType billing.EventType) error {
	sub, err := e.repos.Subscriptions().GetForUpdate(ctx)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		sub = nil
	case err != nil:
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	if eventType == billing.EventTypeInvoicePaid {
		return e.invoicePaid(ctx, sub)
	}

	if sub != nil && sub.IsStale(e.payload.OccurredAt) {
		e.log.Info("Stale billing event ignored",
			zap.Time("occurred_at", e.payload.OccurredAt),
			zap.Time("last_event_at", sub.LastEventAt),
			zap.String("last_event_id", sub.LastEventID),
		)
		return nil
	}

	switch eventType {
	case billing.EventTypeTrialStarted:
		return e.trialStarted(ctx, sub)
	case billing.EventTypeActivated:
		return e.activated(ctx, sub)
	case billing.EventTypePastDue:
		return e.pastDue(ctx, sub)
	case billing.EventTypeCanceled:
		return e.canceled(ctx, sub)
	case billing.EventTypePlanChanged:
		return e.planChanged(ctx, sub)
	}
	return billing.NewRejection(fmt.Sprintf("Unknown billing event type %q", eventType))
}

func (e *effect) trialStarted(ctx context.Context, sub *billing.Subscription) error {
	plan, err := e.plan()
	if err != nil {
		return err
	}
	if _, err := e.mapper.Map(plan, billing.TransitionTrialStart); err != nil {
		return err
	}

	if sub == nil {
		sub = billing.NewSubscription(plan, billing.SubscriptionStateTrialing, e.eventID, e.payload.OccurredAt)
	} else if err := sub.StartTrial(plan, e.eventID, e.payload.OccurredAt); err != nil {
		return err
	}
	e.setPeriodEnd(sub)
	return e.save(ctx, sub)
}

func (e *effect) activated(ctx context.Context, sub *billing.Subscription) error {
	plan, err := e.plan()
	if err != nil {
		return err
	}

	changes, err := e.mapper.Map(plan, billing.TransitionActivate)
	if err != nil {
		return err
	}
	if sub != nil && sub.HoldsRoles() && sub.GrantedPlan != plan {
		if changes, err = e.mapper.MapPlanChange(sub.GrantedPlan, plan); err != nil {
			return err
		}
	}

	if sub == nil {
		sub = billing.NewSubscription(plan, billing.SubscriptionStateActive, e.eventID, e.payload.OccurredAt)
	} else {
		sub.Activate(plan, e.eventID, e.payload.OccurredAt)
	}
	e.setPeriodEnd(sub)
	if err := e.save(ctx, sub); err != nil {
		return err
	}
	return e.applyRoles(ctx, changes)
}

func (e *effect) pastDue(ctx context.Context, sub *billing.Subscription) error {
	if sub == nil {
		return billing.NewRejection("Cannot mark past due: tenant has no subscription")
	}
	changes, err := e.mapper.Map(sub.PlanCode, billing.TransitionPastDue)
	if err != nil {
		return err
	}
	if err := sub.MarkPastDue(e.eventID, e.payload.OccurredAt); err != nil {
		return err
	}
	if err := e.save(ctx, sub); err != nil {
		return err
	}
	return e.applyRoles(ctx, changes)
}

func (e *effect) canceled(ctx context.Context, sub *billing.Subscription) error {
	if sub == nil {
		return billing.NewRejection("Cannot cancel: tenant has no subscription")
	}
	var changes billing.RoleChanges
	if sub.HoldsRoles() {
		var err error
		if changes, err = e.mapper.Map(sub.GrantedPlan, billing.TransitionCancel); err != nil {
			return err
		}
	}
	sub.Cancel(e.eventID, e.payload.OccurredAt)
	if err := e.save(ctx, sub); err != nil {
		return err
	}
	return e.applyRoles(ctx, changes)
}

func (e *effect) planChanged(ctx context.Context, sub *billing.Subscription) error {
	if sub == nil {
		return billing.NewRejection("Cannot change plan: tenant has no subscription")
	}
	plan, err := e.plan()
	if err != nil {
		return err
	}

	// Trials hold no roles, so only the plan code moves
	var changes billing.RoleChanges
	if sub.HoldsRoles() {
		if changes, err = e.mapper.MapPlanChange(sub.GrantedPlan, plan); err != nil {
			return err
		}
	}
	if err := sub.ChangePlan(plan, e.eventID, e.payload.OccurredAt); err != nil {
		return err
	}
	if err := e.save(ctx, sub); err != nil {
		return err
	}
	return e.applyRoles(ctx, changes)
}

// invoicePaid appends the line even without a subscription; the period only moves when one exists
func (e *effect) invoicePaid(ctx context.Context, sub *billing.Subscription) error {
	data := e.payload.Data
	if data.Amount == nil {
		return billing.NewRejection("Invoice amount is required")
	}
	line, err := billing.NewInvoiceLine(data.InvoiceID, e.eventID, *data.Amount, data.Currency, data.CurrentPeriodEnd)
	if err != nil {
		return billing.NewRejection(err.Error())
	}

	written, err := e.repos.InvoiceLines().Append(ctx, line)
	if err != nil {
		return fmt.Errorf("failed to append invoice line: %w", err)
	}
	if !written {
		e.log.Info("Invoice line already recorded", zap.String("invoice_id", line.InvoiceID))
		return nil
	}

	if sub == nil || data.CurrentPeriodEnd == nil {
		return nil
	}
	sub.ExtendPeriod(*data.CurrentPeriodEnd, e.eventID, e.payload.OccurredAt)
	return e.save(ctx, sub)
}

func (e *effect) plan() (string, error) {
	plan := billing.NormalizePlanCode(e.payload.Data.PlanCode)
	if plan == "" {
		return "", billing.NewRejection("Plan code is required")
	}
	if !e.mapper.HasPlan(plan) {
		return "", billing.NewRejection(fmt.Sprintf("Unknown plan code %q", plan))
	}
	return plan, nil
}

func (e *effect) setPeriodEnd(sub *billing.Subscription) {
	if end := e.payload.Data.CurrentPeriodEnd; end != nil {
		sub.ExtendPeriod(*end, e.eventID, e.payload.OccurredAt)
	}
}

func (e *effect) save(ctx context.Context, sub *billing.Subscription) error {
	if err := e.repos.Subscriptions().Save(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// applyRoles revokes, then grants, on the tenant owner
func (e *effect) applyRoles(ctx context.Context, changes billing.RoleChanges) error {
	if changes.IsEmpty() {
		return nil
	}
	if e.owner == uuid.Nil {
		return billing.NewRejection("Tenant has no owner to receive plan roles")
	}

	grants := e.repos.RoleGrants()
	for _, role := range changes.Revokes {
		if err := grants.Revoke(ctx, e.owner, role); err != nil {
			return fmt.Errorf("failed to revoke role %s: %w", role, err)
		}
	}
	now := time.Now().UTC()
	for _, role := range changes.Grants {
		grant := identity.RoleGrant{
			PrincipalID:   e.owner,
			Role:          role,
			SourceEventID: e.eventID,
			GrantedAt:     now,
		}
		if err := grants.Grant(ctx, grant); err != nil {
			return fmt.Errorf("failed to grant role %s: %w", role, err)
		}
	}

	e.log.Info("Plan roles applied",
		zap.String("principal_id", e.owner.String()),
		zap.Int("granted", len(changes.Grants)),
		zap.Int("revoked", len(changes.Revokes)),
	)
	return nil
}
