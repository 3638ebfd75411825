package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// SessionHeader carries the anonymous session identifier for guest carts.
const SessionHeader = "X-Session-ID"

const maxSessionIDLength = 128

// ResolveIdentity resolves the caller's identity from either a bearer token
// or the session header and stores it on the request context. Requests
// without either credential pass through unauthenticated; route-level
// guards decide whether that is acceptable.
func ResolveIdentity(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
				if verifier == nil {
					respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
					return
				}
				identity, err := verifier.Verify(token)
				if err != nil {
					respondVerificationError(w, err)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
				return
			}

			if sessionID, ok := sessionIDFromHeader(r.Header.Get(SessionHeader)); ok {
				identity := &Identity{SessionID: sessionID}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireActor rejects requests that carry neither a user nor a session
// identity.
func RequireActor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ActorFromContext(r.Context()); !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "bearer token or session header required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests without an authenticated (non-session) user.
func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || !identity.Authenticated() {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "bearer token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects authenticated requests whose identity lacks all of the
// allowed roles.
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role != "" {
			allowed = append(allowed, role)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || !identity.Authenticated() {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "bearer token required")
				return
			}
			if len(allowed) > 0 && !identity.HasAnyRole(allowed...) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func sessionIDFromHeader(header string) (string, bool) {
	sessionID := strings.TrimSpace(header)
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return "", false
	}
	for _, r := range sessionID {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return "", false
	}
	return sessionID, true
}

func respondVerificationError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrTokenExpired) {
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "access token expired")
		return
	}
	respondAuthError(w, http.StatusUnauthorized, "token_invalid", "access token invalid")
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
