package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultRoleClaim = "role"
	defaultLeeway    = 30 * time.Second
)

var (
	// ErrTokenExpired signals that the provided access token has expired.
	ErrTokenExpired = errors.New("auth: access token expired")
	// ErrTokenInvalid signals that the provided access token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: access token invalid")
)

// TokenVerifier validates a bearer token and returns the identity it encodes.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  any    `json:"role,omitempty"`
}

// JWTVerifier validates HMAC-signed access tokens issued by the auth service.
type JWTVerifier struct {
	secret    []byte
	issuer    string
	audience  string
	roleClaim string
	leeway    time.Duration
	now       func() time.Time
}

// JWTOption customises JWTVerifier behaviour.
type JWTOption func(*JWTVerifier)

// WithIssuer requires tokens to carry the given issuer.
func WithIssuer(issuer string) JWTOption {
	return func(v *JWTVerifier) {
		v.issuer = strings.TrimSpace(issuer)
	}
}

// WithAudience requires tokens to carry the given audience.
func WithAudience(audience string) JWTOption {
	return func(v *JWTVerifier) {
		v.audience = strings.TrimSpace(audience)
	}
}

// WithLeeway sets the allowed clock skew when validating expiry.
func WithLeeway(d time.Duration) JWTOption {
	return func(v *JWTVerifier) {
		if d > 0 {
			v.leeway = d
		}
	}
}

// WithClock overrides the time source used for expiry validation.
func WithClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewJWTVerifier constructs a verifier for HS256 access tokens.
func NewJWTVerifier(secret string, opts ...JWTOption) (*JWTVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrTokenInvalid)
	}
	v := &JWTVerifier{
		secret:    []byte(secret),
		roleClaim: defaultRoleClaim,
		leeway:    defaultLeeway,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Verify parses and validates the token, returning the encoded identity.
func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	roles := rolesFromClaim(claims.Role)
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}

	return &Identity{
		UID:   uid,
		Email: strings.TrimSpace(claims.Email),
		Roles: roles,
	}, nil
}

func rolesFromClaim(raw any) []string {
	switch v := raw.(type) {
	case string:
		role := normaliseRole(v)
		if role == "" {
			return nil
		}
		return []string{role}
	case []any:
		out := make([]string, 0, len(v))
		seen := make(map[string]struct{}, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			role := normaliseRole(str)
			if role == "" {
				continue
			}
			if _, exists := seen[role]; exists {
				continue
			}
			seen[role] = struct{}{}
			out = append(out, role)
		}
		return out
	default:
		return nil
	}
}
