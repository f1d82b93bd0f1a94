package rules

import (
	"context"
	"slices"

	"github.com/roach88/objgate/internal/ir"
)

// Allow is a rule that always passes. Registering it satisfies strict mode.
func Allow() Rule {
	return func(context.Context, *ir.Operation) error { return nil }
}

// Deny is a rule that always fails with msg.
func Deny(msg string) Rule {
	return func(_ context.Context, op *ir.Operation) error {
		return denied(op, msg)
	}
}

// RequireUser passes when the caller is one of users. With no users it
// passes for any identified caller.
func RequireUser(users ...string) Rule {
	return func(_ context.Context, op *ir.Operation) error {
		if op.Meta.User == "" {
			return denied(op, "authentication required")
		}
		if len(users) > 0 && !slices.Contains(users, op.Meta.User) {
			return denied(op, "user "+op.Meta.User+" is not permitted")
		}
		return nil
	}
}

// RequireRole passes when the caller carries at least one of roles.
func RequireRole(roles ...string) Rule {
	return func(_ context.Context, op *ir.Operation) error {
		for _, role := range roles {
			if op.Meta.HasRole(role) {
				return nil
			}
		}
		return denied(op, "missing required role")
	}
}

func denied(op *ir.Operation, msg string) error {
	e := ir.PermissionDenied("%s", msg)
	e.Type, e.ID = op.Type, op.ID
	return e
}
