package billing

// EventType is the type of a normalized billing event
type EventType string

const (
	EventTypeTrialStarted EventType = "subscription.trial_started"
	EventTypeActivated    EventType = "subscription.activated"
	EventTypePastDue      EventType = "subscription.past_due"
	EventTypeCanceled     EventType = "subscription.canceled"
	EventTypePlanChanged  EventType = "subscription.plan_changed"
	EventTypeInvoicePaid  EventType = "invoice.paid"
)

// AllEventTypes returns every event type the processor can apply
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeTrialStarted,
		EventTypeActivated,
		EventTypePastDue,
		EventTypeCanceled,
		EventTypePlanChanged,
		EventTypeInvoicePaid,
	}
}

// IsKnown reports whether the processor has an effect for this type
func (t EventType) IsKnown() bool {
	for _, known := range AllEventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Transition returns the subscription transition this event drives.
// invoice.paid drives no transition and returns false.
func (t EventType) Transition() (Transition, bool) {
	switch t {
	case EventTypeTrialStarted:
		return TransitionTrialStart, true
	case EventTypeActivated:
		return TransitionActivate, true
	case EventTypePastDue:
		return TransitionPastDue, true
	case EventTypeCanceled:
		return TransitionCancel, true
	case EventTypePlanChanged:
		return TransitionPlanChange, true
	}
	return "", false
}

// String returns the event type
func (t EventType) String() string {
	return string(t)
}
