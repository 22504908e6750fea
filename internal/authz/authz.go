// Package authz holds the caller identity and the single permission
// table consulted by every entry point. Ownership checks stay in the
// services, next to the row they guard.
package authz

import (
	"context"
	"strings"

	"github.com/yameogogildas/transactions/internal/apperr"
)

// Roles after normalization.
const (
	RoleClient  = "client"
	RoleAgent   = "agent"
	RoleService = "service"
)

// Identity is the resolved caller: who they are and what they may do.
type Identity struct {
	UserID uint
	Email  string
	Role   string
}

// NormalizeRole lower-cases the stored role and folds the historical
// supervisor aliases into "service".
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleService, "superviseur", "admin", "supervisor":
		return RoleService
	case RoleAgent:
		return RoleAgent
	case RoleClient:
		return RoleClient
	default:
		return ""
	}
}

// ValidRole reports whether role is one of the three roles accepted at
// registration. Aliases are not accepted on write, only on read.
func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleAgent, RoleService:
		return true
	}
	return false
}

type Operation string

const (
	OpCreateTransaction Operation = "transaction.create"
	OpListTransactions  Operation = "transaction.list"
	OpUpdateTransaction Operation = "transaction.update"
	OpDeleteTransaction Operation = "transaction.delete"
	OpSetStatus         Operation = "transaction.set_status"
	OpManageRates       Operation = "rates.manage"
	OpViewSupervision   Operation = "supervision.view"
	OpViewAlerts        Operation = "alerts.view"
)

// rules is the authorization table. An operation absent from the table
// is denied for everyone.
var rules = map[Operation]map[string]bool{
	OpCreateTransaction: {RoleClient: true, RoleAgent: true, RoleService: true},
	OpListTransactions:  {RoleClient: true, RoleAgent: true, RoleService: true},
	OpUpdateTransaction: {RoleClient: true},
	OpDeleteTransaction: {RoleClient: true, RoleAgent: true, RoleService: true},
	OpSetStatus:         {RoleService: true},
	OpManageRates:       {RoleClient: true, RoleAgent: true, RoleService: true},
	OpViewSupervision:   {RoleService: true},
	OpViewAlerts:        {RoleService: true},
}

func Allowed(op Operation, role string) bool {
	return rules[op][NormalizeRole(role)]
}

// Require returns a Forbidden error when the caller's role may not
// perform op.
func Require(caller Identity, op Operation) error {
	if !Allowed(op, caller.Role) {
		return apperr.Newf(apperr.Forbidden, "role %q may not perform this operation", caller.Role)
	}
	return nil
}

type ctxKey struct{}

// WithIdentity stores the resolved caller on the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext retrieves the caller set by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
