package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "acme.example.com", NormalizeHost("ACME.Example.com"))
	assert.Equal(t, "acme.example.com", NormalizeHost("acme.example.com:8443"))
	assert.Equal(t, "acme.example.com", NormalizeHost(" acme.example.com. "))
	assert.Equal(t, "", NormalizeHost(""))
}

func TestNewTenantDomain(t *testing.T) {
	tenantID := uuid.New()

	d, err := NewTenantDomain("Billing.ACME.io:443", tenantID)
	require.NoError(t, err)
	assert.Equal(t, "billing.acme.io", d.Host)
	assert.Equal(t, tenantID, d.TenantID)

	_, err = NewTenantDomain("not a host", tenantID)
	assert.Contains(t, err.Error(), "not a valid domain")

	_, err = NewTenantDomain("acme.io", uuid.Nil)
	assert.Contains(t, err.Error(), "must reference a tenant")
}

func TestSubdomainLabel(t *testing.T) {
	label, ok := SubdomainLabel("acme.tenantcore.app", "tenantcore.app")
	assert.True(t, ok)
	assert.Equal(t, "acme", label)

	_, ok = SubdomainLabel("a.b.tenantcore.app", "tenantcore.app")
	assert.False(t, ok)

	_, ok = SubdomainLabel("tenantcore.app", "tenantcore.app")
	assert.False(t, ok)

	_, ok = SubdomainLabel("acme.other.app", "tenantcore.app")
	assert.False(t, ok)

	_, ok = SubdomainLabel("acme.tenantcore.app", "")
	assert.False(t, ok)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Billing_Viewer ")
	require.NoError(t, err)
	assert.Equal(t, Role("billing_viewer"), r)

	_, err = ParseRole("")
	assert.Error(t, err)
	_, err = ParseRole("9lives")
	assert.Error(t, err)
}

func TestNewMembership(t *testing.T) {
	m, err := NewMembership(uuid.New(), uuid.New(), MembershipRoleOwner)
	require.NoError(t, err)
	assert.Equal(t, MembershipRoleOwner, m.Role)

	_, err = NewMembership(uuid.New(), uuid.Nil, MembershipRoleMember)
	assert.Error(t, err)
	_, err = NewMembership(uuid.New(), uuid.New(), "guest")
	assert.Error(t, err)
}
