package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yameogogildas/transactions/internal/apperr"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"client", RoleClient},
		{"agent", RoleAgent},
		{"service", RoleService},
		{"superviseur", RoleService},
		{"admin", RoleService},
		{"supervisor", RoleService},
		{"  Service ", RoleService},
		{"CLIENT", RoleClient},
		{"", ""},
		{"manager", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRole(tt.in), "input %q", tt.in)
	}
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("client"))
	assert.True(t, ValidRole("agent"))
	assert.True(t, ValidRole("service"))
	// aliases normalize on read but are rejected at registration
	assert.False(t, ValidRole("admin"))
	assert.False(t, ValidRole("superviseur"))
	assert.False(t, ValidRole(""))
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		op    Operation
		role  string
		allow bool
	}{
		{OpCreateTransaction, "client", true},
		{OpCreateTransaction, "agent", true},
		{OpCreateTransaction, "service", true},
		{OpUpdateTransaction, "client", true},
		{OpUpdateTransaction, "agent", false},
		{OpUpdateTransaction, "service", false},
		{OpSetStatus, "service", true},
		{OpSetStatus, "superviseur", true},
		{OpSetStatus, "client", false},
		{OpSetStatus, "agent", false},
		{OpViewSupervision, "service", true},
		{OpViewSupervision, "client", false},
		{OpViewAlerts, "admin", true},
		{OpViewAlerts, "agent", false},
		{OpManageRates, "client", true},
		{OpManageRates, "unknown", false},
		{Operation("nonexistent"), "service", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allow, Allowed(tt.op, tt.role), "%s as %s", tt.op, tt.role)
	}
}

func TestRequire(t *testing.T) {
	err := Require(Identity{UserID: 1, Role: "agent"}, OpSetStatus)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	require.NoError(t, Require(Identity{UserID: 1, Role: "service"}, OpSetStatus))
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	want := Identity{UserID: 7, Email: "a@b.c", Role: RoleClient}
	ctx := WithIdentity(context.Background(), want)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, want, got)
}
