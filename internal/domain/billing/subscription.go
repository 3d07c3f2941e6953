package billing

import (
	"time"
)

// SubscriptionState is the state of a tenant's subscription
type SubscriptionState string

const (
	SubscriptionStateTrialing SubscriptionState = "trialing"
	SubscriptionStateActive   SubscriptionState = "active"
	SubscriptionStatePastDue  SubscriptionState = "past_due"
	SubscriptionStateCanceled SubscriptionState = "canceled"
)

// Subscription is the single subscription row inside a tenant namespace.
// Every mutation records the event that caused it so late deliveries can be detected.
type Subscription struct {
	PlanCode         string
	State            SubscriptionState
	// GrantedPlan is the plan whose activation roles the owner holds; empty when none are held
	GrantedPlan      string
	CurrentPeriodEnd *time.Time
	LastEventID      string
	LastEventAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewSubscription creates a subscription from the event that first mentions it
func NewSubscription(planCode string, state SubscriptionState, eventID string, occurredAt time.Time) *Subscription {
	now := time.Now().UTC()
	sub := &Subscription{
		PlanCode:    planCode,
		State:       state,
		LastEventID: eventID,
		LastEventAt: occurredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if state == SubscriptionStateActive {
		sub.GrantedPlan = planCode
	}
	return sub
}

// IsStale reports whether an event that occurred at t predates the last applied one
func (s *Subscription) IsStale(t time.Time) bool {
	return t.Before(s.LastEventAt)
}

// HoldsRoles reports whether the owner currently holds the activation roles of GrantedPlan.
// A past_due subscription keeps them until it is canceled.
func (s *Subscription) HoldsRoles() bool {
	return s.GrantedPlan != ""
}

// StartTrial is a no-op for a trial on the same plan and a rejection otherwise
func (s *Subscription) StartTrial(planCode, eventID string, occurredAt time.Time) error {
	if s.State == SubscriptionStateTrialing && s.PlanCode == planCode {
		s.record(eventID, occurredAt)
		return nil
	}
	return NewRejection("Subscription already exists in state " + string(s.State))
}

// Activate moves the subscription to active on the given plan
func (s *Subscription) Activate(planCode, eventID string, occurredAt time.Time) {
	s.PlanCode = planCode
	s.GrantedPlan = planCode
	s.State = SubscriptionStateActive
	s.record(eventID, occurredAt)
}

// MarkPastDue flags a failed renewal
func (s *Subscription) MarkPastDue(eventID string, occurredAt time.Time) error {
	switch s.State {
	case SubscriptionStateActive, SubscriptionStateTrialing, SubscriptionStatePastDue:
		s.State = SubscriptionStatePastDue
		s.record(eventID, occurredAt)
		return nil
	}
	return NewRejection("Cannot mark a canceled subscription past due")
}

// Cancel ends the subscription; canceling twice is a no-op
func (s *Subscription) Cancel(eventID string, occurredAt time.Time) {
	s.State = SubscriptionStateCanceled
	s.GrantedPlan = ""
	s.record(eventID, occurredAt)
}

// ChangePlan switches the plan of a live subscription. Held roles follow the new plan.
func (s *Subscription) ChangePlan(planCode, eventID string, occurredAt time.Time) error {
	if s.State == SubscriptionStateCanceled {
		return NewRejection("Cannot change the plan of a canceled subscription")
	}
	s.PlanCode = planCode
	if s.HoldsRoles() {
		s.GrantedPlan = planCode
	}
	s.record(eventID, occurredAt)
	return nil
}

// ExtendPeriod moves the period end forward; an earlier end is ignored
func (s *Subscription) ExtendPeriod(periodEnd time.Time, eventID string, occurredAt time.Time) {
	periodEnd = periodEnd.UTC()
	if s.CurrentPeriodEnd == nil || periodEnd.After(*s.CurrentPeriodEnd) {
		s.CurrentPeriodEnd = &periodEnd
	}
	if !s.IsStale(occurredAt) {
		s.record(eventID, occurredAt)
	}
}

func (s *Subscription) record(eventID string, occurredAt time.Time) {
	s.LastEventID = eventID
	if occurredAt.After(s.LastEventAt) {
		s.LastEventAt = occurredAt
	}
	s.UpdatedAt = time.Now().UTC()
}
