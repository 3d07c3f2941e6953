package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code, so errors built with
// NewDomainError for a specific case still match the package sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared by the tenancy and billing contexts
const (
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeConcurrency        = "CONCURRENCY_CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidState       = "INVALID_STATE"
	CodeSuspended          = "TENANT_SUSPENDED"
	CodeCrossTenantAccess  = "CROSS_TENANT_ACCESS"
	CodeRejected           = "BILLING_EVENT_REJECTED"
	CodeConfigurationError = "CONFIGURATION_ERROR"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrency, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")

	// ErrSuspended means the tenant exists but its status does not allow access.
	ErrSuspended = NewDomainError(CodeSuspended, "Tenant is not available")
	// ErrCrossTenantAccess means the caller is not a member of the addressed tenant.
	ErrCrossTenantAccess = NewDomainError(CodeCrossTenantAccess, "Access to this tenant is forbidden")
	// ErrRejected means a billing event could not be applied and needs manual reconciliation.
	ErrRejected = NewDomainError(CodeRejected, "Billing event rejected")
	// ErrConfiguration is fatal at startup and never returned at request time.
	ErrConfiguration = NewDomainError(CodeConfigurationError, "Invalid configuration")
)
