package auth

import (
	"context"
	"strings"

	"github.com/lumenmarket/api/internal/domain"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Identity captures the resolved principal for a request: either an
// authenticated user (UID set) or an anonymous session (SessionID set).
// Exactly one of the two is populated.
type Identity struct {
	UID       string
	SessionID string
	Email     string
	Roles     []string
}

// Actor returns the opaque cart/order owner key for this identity. User ids
// and session ids are never mixed for the same cart instance.
func (i *Identity) Actor() domain.ActorRef {
	if i == nil {
		return ""
	}
	if i.UID != "" {
		return domain.ActorRef(i.UID)
	}
	return domain.ActorRef(i.SessionID)
}

// Authenticated reports whether the identity belongs to a signed-in user.
func (i *Identity) Authenticated() bool {
	return i != nil && i.UID != ""
}

// HasRole reports whether the identity includes the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	if role == "" {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity includes any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/lumenmarket/api/internal/platform/auth/identity"

// WithIdentity stores the identity on the context for downstream consumers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity placed by the middleware, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// ActorFromContext returns the actor key for the current request, or false
// when no identity was resolved.
func ActorFromContext(ctx context.Context) (domain.ActorRef, bool) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	actor := identity.Actor()
	if actor.IsZero() {
		return "", false
	}
	return actor, true
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
