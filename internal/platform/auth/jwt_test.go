package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-signing-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWTVerifierResolvesIdentity(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, jwt.MapClaims{
		"sub":   "user_123",
		"email": "shopper@example.com",
		"role":  "admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UID != "user_123" {
		t.Fatalf("expected uid user_123, got %q", identity.UID)
	}
	if identity.Email != "shopper@example.com" {
		t.Fatalf("unexpected email %q", identity.Email)
	}
	if !identity.HasRole(RoleAdmin) {
		t.Fatalf("expected admin role, got %v", identity.Roles)
	}
	if identity.Actor() != "user_123" {
		t.Fatalf("expected actor user_123, got %q", identity.Actor())
	}
}

func TestJWTVerifierDefaultsRole(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, jwt.MapClaims{
		"sub": "user_456",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.HasRole(RoleUser) {
		t.Fatalf("expected fallback user role, got %v", identity.Roles)
	}
}

func TestJWTVerifierExpiredToken(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret, WithLeeway(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, jwt.MapClaims{
		"sub": "user_789",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestJWTVerifierRejectsWrongSecret(t *testing.T) {
	verifier, err := NewJWTVerifier("a-different-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, jwt.MapClaims{
		"sub": "user_123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestJWTVerifierMissingSubject(t *testing.T) {
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	if _, err := NewJWTVerifier("   "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
