package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-access/internal/models"
	"github.com/noah-isme/gema-access/internal/observability"
)

// Operation is a mutation subject to the authority hierarchy.
type Operation string

// Guarded operations.
const (
	OpAssign         Operation = "assign"
	OpRevoke         Operation = "revoke"
	OpEditPermission Operation = "edit_permission"
	OpCreateRole     Operation = "create_role"
)

// Decision is the outcome of an authority check.
type Decision bool

// Decision values.
const (
	Deny  Decision = false
	Allow Decision = true
)

// Actor is the authenticated subject performing a mutation, with the role set
// asserted by the identity provider.
type Actor struct {
	ID    string
	Roles []models.Role
}

var adminAssignable = map[models.Role]struct{}{
	models.RoleTeacher:  {},
	models.RoleStudent:  {},
	models.RoleGuardian: {},
}

// Decide applies the authority hierarchy. It has no side effects.
func Decide(actingRoles []models.Role, target models.Role, op Operation) Decision {
	if models.HasRole(actingRoles, models.RoleSuperAdmin) {
		return Allow
	}

	if !models.HasRole(actingRoles, models.RoleAdmin) {
		return Deny
	}

	switch op {
	case OpAssign, OpRevoke:
		if _, ok := adminAssignable[target]; ok {
			return Allow
		}
	}
	return Deny
}

// authorize runs Decide, records the outcome and wraps a denial.
func authorize(actor Actor, target models.Role, op Operation) error {
	decision := Decide(actor.Roles, target, op)
	result := "allow"
	if decision == Deny {
		result = "deny"
	}
	observability.AuthorityDecisions().WithLabelValues(string(op), result).Inc()

	if decision == Deny {
		return fmt.Errorf("%w: %s on role %q", ErrAuthorization, strings.ReplaceAll(string(op), "_", " "), target)
	}
	return nil
}

func recordMutation(op string, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrAuthorization):
		result = "denied"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicateRole), errors.Is(err, ErrNotFound):
		result = "rejected"
	default:
		result = "error"
	}
	observability.Mutations().WithLabelValues(op, result).Inc()
}
