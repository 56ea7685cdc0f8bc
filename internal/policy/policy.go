// Package policy decides whether an identity may perform an operation on a
// resource. It does no I/O; callers supply the resource owner.
package policy

import (
	"fmt"

	"github.com/fzkn4/gate-security/internal/models"
)

// ResourceKind names the kind of record being accessed
type ResourceKind string

const (
	KindIdentity    ResourceKind = "identity"
	KindVehicle     ResourceKind = "vehicle"
	KindAccessEvent ResourceKind = "access_event"
)

// Operation is an action on a resource
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	// OpSetRole covers any write of an identity's role field.
	OpSetRole Operation = "set_role"
	// OpSetOwner covers moving a vehicle to another identity.
	OpSetOwner Operation = "set_owner"
	// OpCredential is a change of the actor's own credential.
	OpCredential Operation = "credential"
)

// Authorize returns nil when actor may perform op on a resource of the given
// kind owned by ownerID, and an ErrForbidden-wrapping error otherwise.
func Authorize(actor *models.Identity, kind ResourceKind, ownerID int64, op Operation) error {
	if actor == nil {
		return fmt.Errorf("%w: no identity", models.ErrForbidden)
	}

	if err := RequireCredentialChange(actor, kind, ownerID, op); err != nil {
		return err
	}

	if actor.IsAdmin() {
		return nil
	}

	switch op {
	case OpSetRole, OpSetOwner:
		return deny(kind, op)
	}

	if kind == KindIdentity && (op == OpCreate || op == OpDelete) {
		return deny(kind, op)
	}

	if ownerID != actor.ID {
		return deny(kind, op)
	}
	return nil
}

// RequireCredentialChange blocks an identity that still carries a bootstrap
// credential from everything except reading itself and replacing that
// credential.
func RequireCredentialChange(actor *models.Identity, kind ResourceKind, ownerID int64, op Operation) error {
	if !actor.MustChangeCredential {
		return nil
	}
	if kind == KindIdentity && ownerID == actor.ID && (op == OpRead || op == OpCredential) {
		return nil
	}
	return fmt.Errorf("%w: credential change required before %s %s", models.ErrForbidden, op, kind)
}

// AuthorizeList gates list operations. The rows returned must still be
// filtered with Scope.
func AuthorizeList(actor *models.Identity, kind ResourceKind) error {
	if actor == nil {
		return fmt.Errorf("%w: no identity", models.ErrForbidden)
	}
	return RequireCredentialChange(actor, kind, 0, OpRead)
}

// Scope returns the owner filter list operations must apply for actor: nil
// for admins (everything), the actor's own id otherwise.
func Scope(actor *models.Identity) *int64 {
	if actor.IsAdmin() {
		return nil
	}
	id := actor.ID
	return &id
}

// NarrowScope combines the policy scope with an owner filter requested by the
// caller. A non-admin may only request their own records.
func NarrowScope(actor *models.Identity, requested *int64) (*int64, error) {
	scope := Scope(actor)
	if requested == nil {
		return scope, nil
	}
	if scope != nil && *scope != *requested {
		return nil, deny(KindVehicle, OpRead)
	}
	id := *requested
	return &id, nil
}

func deny(kind ResourceKind, op Operation) error {
	return fmt.Errorf("%w: %s %s not permitted", models.ErrForbidden, op, kind)
}
