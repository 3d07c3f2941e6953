package identity

import (
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tenantcore/backend/internal/domain/shared"
)

// TenantDomain maps a custom host name to a tenant
type TenantDomain struct {
	Host      string
	TenantID  uuid.UUID
	CreatedAt time.Time
}

var hostPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,63}$`)

// NewTenantDomain creates a domain entry with a normalized host
func NewTenantDomain(host string, tenantID uuid.UUID) (*TenantDomain, error) {
	host = NormalizeHost(host)
	if err := ValidateHost(host); err != nil {
		return nil, err
	}
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Domain must reference a tenant")
	}
	return &TenantDomain{
		Host:      host,
		TenantID:  tenantID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NormalizeHost lower-cases a Host header value and strips the port and trailing dot
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// ValidateHost checks a normalized host name
func ValidateHost(host string) error {
	if host == "" {
		return shared.NewDomainError("INVALID_HOST", "Host cannot be empty")
	}
	if len(host) > 253 {
		return shared.NewDomainError("INVALID_HOST", "Host cannot exceed 253 characters")
	}
	if !hostPattern.MatchString(host) {
		return shared.NewDomainError("INVALID_HOST", "Host is not a valid domain name")
	}
	return nil
}

// SubdomainLabel returns the first label of host when host is a direct subdomain of baseDomain
func SubdomainLabel(host, baseDomain string) (string, bool) {
	baseDomain = NormalizeHost(baseDomain)
	if baseDomain == "" {
		return "", false
	}
	suffix := "." + baseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}
