package models

import "context"

// Principal is the authenticated caller decoded from the bearer token.
type Principal struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// HasRole reports whether the principal holds one of roles. Admin holds every role.
func (p Principal) HasRole(roles ...string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ActorID returns the caller's user id or "system" for unauthenticated contexts
// such as background jobs.
func ActorID(ctx context.Context) string {
	if p, ok := PrincipalFrom(ctx); ok && p.UserID != "" {
		return p.UserID
	}
	return "system"
}
