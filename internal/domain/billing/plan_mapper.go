package billing

import (
	"fmt"
	"slices"
	"sort"

	"github.com/tenantcore/backend/internal/domain/identity"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// Transition is a subscription state change that can affect roles
type Transition string

const (
	TransitionTrialStart Transition = "trial_start"
	TransitionActivate   Transition = "activate"
	TransitionPastDue    Transition = "past_due"
	TransitionCancel     Transition = "cancel"
	TransitionPlanChange Transition = "plan_change"
)

// AllTransitions returns every transition the mapper must cover
func AllTransitions() []Transition {
	return []Transition{
		TransitionTrialStart,
		TransitionActivate,
		TransitionPastDue,
		TransitionCancel,
		TransitionPlanChange,
	}
}

// RoleChanges is the set of role grants and revocations a transition causes
type RoleChanges struct {
	Grants  []identity.Role
	Revokes []identity.Role
}

// IsEmpty returns true if nothing changes
func (c RoleChanges) IsEmpty() bool {
	return len(c.Grants) == 0 && len(c.Revokes) == 0
}

// PlanRoleMapper maps plan transitions to role changes. It is pure and safe for concurrent use.
type PlanRoleMapper struct {
	roles map[string][]identity.Role
}

// NewPlanRoleMapper validates the catalog and builds the mapper.
// Any gap returns a CONFIGURATION_ERROR; the server must not start with it.
func NewPlanRoleMapper(catalog PlanCatalog) (*PlanRoleMapper, error) {
	if len(catalog.Offered) == 0 {
		return nil, configError("no plans are offered")
	}

	m := &PlanRoleMapper{roles: make(map[string][]identity.Role, len(catalog.Plans))}
	for key, plan := range catalog.Plans {
		code := NormalizePlanCode(plan.Code)
		if code == "" {
			code = NormalizePlanCode(key)
		}
		roles := make([]identity.Role, 0, len(plan.RolesOnActivation))
		for _, name := range plan.RolesOnActivation {
			role, err := identity.ParseRole(name)
			if err != nil {
				return nil, configError(fmt.Sprintf("plan %q has an invalid role %q: %s", code, name, err.Error()))
			}
			if !slices.Contains(roles, role) {
				roles = append(roles, role)
			}
		}
		m.roles[code] = roles
	}

	for _, offered := range catalog.Offered {
		code := NormalizePlanCode(offered)
		roles, ok := m.roles[code]
		if !ok {
			return nil, configError(fmt.Sprintf("plan %q is offered but has no role mapping", code))
		}
		if len(roles) == 0 {
			return nil, configError(fmt.Sprintf("plan %q maps to no roles on activation", code))
		}
		for _, t := range AllTransitions() {
			if _, err := m.Map(code, t); err != nil {
				return nil, configError(fmt.Sprintf("plan %q cannot map transition %q: %s", code, t, err.Error()))
			}
		}
	}

	return m, nil
}

// Map returns the role changes of a transition on one plan.
// For plan_change the plan is the target plan; use MapPlanChange to include revocations of the old plan.
func (m *PlanRoleMapper) Map(planCode string, t Transition) (RoleChanges, error) {
	roles, ok := m.roles[NormalizePlanCode(planCode)]
	if !ok {
		return RoleChanges{}, NewRejection(fmt.Sprintf("Unknown plan code %q", planCode))
	}

	switch t {
	case TransitionActivate, TransitionPlanChange:
		return RoleChanges{Grants: slices.Clone(roles)}, nil
	case TransitionCancel:
		return RoleChanges{Revokes: slices.Clone(roles)}, nil
	case TransitionTrialStart, TransitionPastDue:
		return RoleChanges{}, nil
	}
	return RoleChanges{}, NewRejection(fmt.Sprintf("Unknown transition %q", t))
}

// MapPlanChange returns the roles to grant for the new plan and the roles of the old plan
// that the new plan does not carry.
func (m *PlanRoleMapper) MapPlanChange(fromPlan, toPlan string) (RoleChanges, error) {
	to, err := m.Map(toPlan, TransitionPlanChange)
	if err != nil {
		return RoleChanges{}, err
	}
	from, err := m.Map(fromPlan, TransitionCancel)
	if err != nil {
		return RoleChanges{}, err
	}

	changes := RoleChanges{Grants: to.Grants}
	for _, role := range from.Revokes {
		if !slices.Contains(to.Grants, role) {
			changes.Revokes = append(changes.Revokes, role)
		}
	}
	return changes, nil
}

// HasPlan reports whether the plan code is known
func (m *PlanRoleMapper) HasPlan(planCode string) bool {
	_, ok := m.roles[NormalizePlanCode(planCode)]
	return ok
}

// Plans returns the known plan codes in sorted order
func (m *PlanRoleMapper) Plans() []string {
	codes := make([]string, 0, len(m.roles))
	for code := range m.roles {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func configError(msg string) error {
	return shared.NewDomainError(shared.CodeConfigurationError, "Invalid plan configuration: "+msg)
}
