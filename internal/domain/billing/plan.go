package billing

import "strings"

// Plan is read-mostly reference data shared by all tenants
type Plan struct {
	Code              string
	RolesOnActivation []string
}

// PlanCatalog holds the plans the product sells and their role mappings
type PlanCatalog struct {
	// Offered lists the plan codes customers can subscribe to
	Offered []string
	Plans   map[string]Plan
}

// DefaultPlanCatalog returns the built-in plans
func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		Offered: []string{"free", "basic", "pro", "enterprise"},
		Plans: map[string]Plan{
			"free":       {Code: "free", RolesOnActivation: []string{"member"}},
			"basic":      {Code: "basic", RolesOnActivation: []string{"member", "billing_viewer"}},
			"pro":        {Code: "pro", RolesOnActivation: []string{"admin", "billing_viewer"}},
			"enterprise": {Code: "enterprise", RolesOnActivation: []string{"admin", "billing_viewer", "auditor"}},
		},
	}
}

// NormalizePlanCode lower-cases and trims a plan code
func NormalizePlanCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
