package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestSignAndVerify(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	signed, err := SignJWT(Claims{
		Email:            "a@example.com",
		Name:             "A",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "google:123"},
	})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	claims, err := VerifyJWT(signed)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if claims.Subject != "google:123" || claims.Email != "a@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) <= 0 {
		t.Fatalf("expiry not set: %+v", claims.ExpiresAt)
	}
}

func TestSignRequiresSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	if _, err := SignJWT(Claims{Email: "a@example.com"}); err == nil {
		t.Fatalf("expected error for missing subject")
	}
}

func TestSignRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := SignJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}); !errors.Is(err, errMissingSecret) {
		t.Fatalf("error = %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	signed, err := SignJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	parts := strings.Split(signed, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA"
	if _, err := VerifyJWT(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token error = %v", err)
	}

	t.Setenv("JWT_SECRET", "different-secret")
	if _, err := VerifyJWT(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong-secret error = %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	past := jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	signed, err := SignJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-3 * time.Hour)),
		ExpiresAt: past,
	}})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	if _, err := VerifyJWT(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token error = %v", err)
	}
}
