package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
	// ErrCodeSignatureInvalid is returned for webhook deliveries that fail signature verification
	ErrCodeSignatureInvalid = "ERR_SIGNATURE_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Tenancy and billing error codes
const (
	// ErrCodeTenantUnavailable covers suspended tenants and cross-tenant access.
	// Both carry the same body so callers cannot tell them apart.
	ErrCodeTenantUnavailable    = "ERR_TENANT_UNAVAILABLE"
	ErrCodeInvalidState         = "ERR_INVALID_STATE"
	ErrCodeBillingEventRejected = "ERR_BILLING_EVENT_REJECTED"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeTokenRevoked:     http.StatusUnauthorized,
	ErrCodeSignatureInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeTenantUnavailable:    http.StatusForbidden,
	ErrCodeInvalidState:         http.StatusUnprocessableEntity,
	ErrCodeBillingEventRejected: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps shared.DomainError codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"ALREADY_EXISTS":         ErrCodeAlreadyExists,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"INVALID_STATE":          ErrCodeInvalidState,
	"UNAUTHORIZED":           ErrCodeUnauthorized,
	"FORBIDDEN":              ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrencyConflict,
	"TENANT_SUSPENDED":       ErrCodeTenantUnavailable,
	"CROSS_TENANT_ACCESS":    ErrCodeTenantUnavailable,
	"BILLING_EVENT_REJECTED": ErrCodeBillingEventRejected,
	"CONFIGURATION_ERROR":    ErrCodeInternal,

	"INVALID_SLUG":       ErrCodeInvalidInput,
	"INVALID_HOST":       ErrCodeInvalidInput,
	"INVALID_OWNER":      ErrCodeInvalidInput,
	"INVALID_ROLE":       ErrCodeInvalidInput,
	"INVALID_MEMBERSHIP": ErrCodeInvalidInput,
	"INVALID_EVENT_ID":   ErrCodeInvalidInput,
	"INVALID_EVENT_TYPE": ErrCodeInvalidInput,
	"INVALID_PAYLOAD":    ErrCodeInvalidInput,
	"ALREADY_ACTIVE":     ErrCodeInvalidState,
	"ALREADY_SUSPENDED":  ErrCodeInvalidState,
	"ALREADY_DELETED":    ErrCodeInvalidState,
	"SLUG_UNCHANGED":     ErrCodeInvalidState,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, and unknown codes, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
