// Package identity carries the authenticated caller through the engine.
// Every orchestrator operation takes an explicit Actor; there is no implicit
// session.
package identity

import "context"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStylist  Role = "stylist"
	RoleAdmin    Role = "admin"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleCustomer, RoleStylist, RoleAdmin:
		return Role(raw), true
	}
	return "", false
}

// Actor is the authenticated principal attributed to an operation.
type Actor struct {
	ID   string
	Role Role
}

// CanApprove reports whether the actor may confirm pending appointments.
func (a Actor) CanApprove() bool {
	return a.Role == RoleStylist || a.Role == RoleAdmin
}

// CanComplete reports whether the actor may complete an appointment assigned
// to stylistID.
func (a Actor) CanComplete(stylistID string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleStylist && a.ID == stylistID
}

// CanActFor reports whether the actor may book, edit, or read balances on
// behalf of customerID.
func (a Actor) CanActFor(customerID string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.ID == customerID
}

type ctxKey int

const ctxKeyActor ctxKey = iota

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// FromContext returns the actor placed by the auth middleware, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	return a, ok && a.ID != ""
}
