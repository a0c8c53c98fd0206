package authz

import (
	"errors"

	"github.com/google/uuid"

	"github.com/checkerhub/checkerhub/internal/domain/user"
)

var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated caller of an application operation.
type Actor struct {
	UserID uuid.UUID
	Role   user.Role
}

// ActorFrom builds an actor from a loaded user.
func ActorFrom(u *user.User) Actor {
	return Actor{UserID: u.UserID, Role: u.Role}
}

// Ref is the actor reference recorded on status transitions.
func (a Actor) Ref() string {
	return "user:" + a.UserID.String()
}

// Authorizer answers capability questions from injected configuration.
type Authorizer struct {
	operators     map[uuid.UUID]struct{}
	supportUserID uuid.UUID
}

// NewAuthorizer grants the operator capability to ADMIN users, to the listed
// user ids and to the support identity.
func NewAuthorizer(operatorIDs []uuid.UUID, supportUserID uuid.UUID) *Authorizer {
	ops := make(map[uuid.UUID]struct{}, len(operatorIDs)+1)
	for _, id := range operatorIDs {
		if id != uuid.Nil {
			ops[id] = struct{}{}
		}
	}
	if supportUserID != uuid.Nil {
		ops[supportUserID] = struct{}{}
	}
	return &Authorizer{operators: ops, supportUserID: supportUserID}
}

// IsOperator reports whether the actor may use the activation tool.
func (a *Authorizer) IsOperator(actor Actor) bool {
	if actor.UserID == uuid.Nil {
		return false
	}
	if actor.Role == user.RoleAdmin {
		return true
	}
	_, ok := a.operators[actor.UserID]
	return ok
}

// RequireOperator returns ErrForbidden unless the actor is an operator.
func (a *Authorizer) RequireOperator(actor Actor) error {
	if !a.IsOperator(actor) {
		return ErrForbidden
	}
	return nil
}

// SupportUserID is the user owning the admin checker profile. It is uuid.Nil
// when support escalation is not configured.
func (a *Authorizer) SupportUserID() uuid.UUID {
	return a.supportUserID
}
