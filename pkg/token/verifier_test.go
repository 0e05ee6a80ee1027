package token

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/palisadeproject/palisade/pkg/clock"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testClock() *clock.FakeClock {
	return clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func signToken(t *testing.T, method jwt.SigningMethod, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	return raw
}

func validClaims(clk clock.Clock) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":     "42",
		"user_id": 42,
		"email":   "a@b.com",
		"roles":   []string{"ROLE_USER"},
		"exp":     clk.Now().Add(time.Hour).Unix(),
	}
}

func TestNewVerifier_Config(t *testing.T) {
	clk := testClock()

	if _, err := NewVerifier(nil, "HS256", clk); err == nil {
		t.Error("Expected error for empty key")
	}
	if _, err := NewVerifier(testKey, "RS256", clk); err == nil {
		t.Error("Expected error for non-HMAC algorithm")
	}
	if _, err := NewVerifier(testKey, "none", clk); err == nil {
		t.Error("Expected error for 'none' algorithm")
	}
	if _, err := NewVerifier(testKey, "HS256", clk); err != nil {
		t.Errorf("Unexpected error for valid config: %v", err)
	}
}

func TestVerifier_ValidToken(t *testing.T) {
	clk := testClock()
	v, err := NewVerifier(testKey, "HS256", clk)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	raw := signToken(t, jwt.SigningMethodHS256, testKey, validClaims(clk))

	set, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if set.Subject != "42" {
		t.Errorf("Subject: expected 42, got %q", set.Subject)
	}
	if set.UserKey != "42" {
		t.Errorf("UserKey: expected 42, got %q", set.UserKey)
	}
	if set.Email != "a@b.com" {
		t.Errorf("Email: expected a@b.com, got %q", set.Email)
	}
	if len(set.Roles) != 1 || set.Roles[0] != "ROLE_USER" {
		t.Errorf("Roles: expected [ROLE_USER], got %v", set.Roles)
	}
}

func TestVerifier_Idempotent(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)
	raw := signToken(t, jwt.SigningMethodHS256, testKey, validClaims(clk))

	first, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("First Verify failed: %v", err)
	}
	second, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Second Verify failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Verify not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestVerifier_Malformed(t *testing.T) {
	v, _ := NewVerifier(testKey, "HS256", testClock())

	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, err := v.Verify(raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("Verify(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestVerifier_WrongKey(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)

	otherKey := []byte("ffffffffffffffffffffffffffffffff")
	raw := signToken(t, jwt.SigningMethodHS256, otherKey, validClaims(clk))

	if _, err := v.Verify(raw); !errors.Is(err, ErrSignature) {
		t.Errorf("Expected ErrSignature, got %v", err)
	}
}

func TestVerifier_AlgorithmPinning(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)

	// Validly signed under HS512, but the verifier is pinned to HS256.
	raw := signToken(t, jwt.SigningMethodHS512, testKey, validClaims(clk))

	_, err := v.Verify(raw)
	if err == nil {
		t.Fatal("Expected verification to fail for HS512 token")
	}
	if errors.Is(err, ErrExpired) || errors.Is(err, ErrMissingClaims) {
		t.Errorf("Algorithm mismatch misclassified: %v", err)
	}
}

func TestVerifier_ExpiredToken(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)

	claims := validClaims(clk)
	claims["exp"] = clk.Now().Add(-time.Minute).Unix()
	raw := signToken(t, jwt.SigningMethodHS256, testKey, claims)

	if _, err := v.Verify(raw); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired, got %v", err)
	}
}

func TestVerifier_ExpiryBoundary(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)

	// exp == now must be rejected: validity requires now < exp, not <=.
	claims := validClaims(clk)
	claims["exp"] = clk.Now().Unix()
	raw := signToken(t, jwt.SigningMethodHS256, testKey, claims)

	if _, err := v.Verify(raw); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired at exp == now, got %v", err)
	}
}

func TestVerifier_ExpiryRequired(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)

	claims := validClaims(clk)
	delete(claims, "exp")
	raw := signToken(t, jwt.SigningMethodHS256, testKey, claims)

	if _, err := v.Verify(raw); err == nil {
		t.Error("Expected verification to fail without exp claim")
	}
}

func TestVerifier_MissingClaims(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)

	for _, missing := range []string{"sub", "user_id", "email", "roles"} {
		claims := validClaims(clk)
		delete(claims, missing)
		raw := signToken(t, jwt.SigningMethodHS256, testKey, claims)

		if _, err := v.Verify(raw); !errors.Is(err, ErrMissingClaims) {
			t.Errorf("Missing %q: expected ErrMissingClaims, got %v", missing, err)
		}
	}
}

func TestVerifier_EmptyRoles(t *testing.T) {
	clk := testClock()
	v, _ := NewVerifier(testKey, "HS256", clk)

	claims := validClaims(clk)
	claims["roles"] = []string{}
	raw := signToken(t, jwt.SigningMethodHS256, testKey, claims)

	if _, err := v.Verify(raw); !errors.Is(err, ErrMissingClaims) {
		t.Errorf("Expected ErrMissingClaims for empty roles, got %v", err)
	}
}

func TestVerifier_IssuerPinning(t *testing.T) {
	clk := testClock()
	v, err := NewVerifier(testKey, "HS256", clk, WithIssuer("palisade"))
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	claims := validClaims(clk)
	claims["iss"] = "someone-else"
	raw := signToken(t, jwt.SigningMethodHS256, testKey, claims)

	if _, err := v.Verify(raw); err == nil {
		t.Error("Expected verification to fail for wrong issuer")
	}

	claims["iss"] = "palisade"
	raw = signToken(t, jwt.SigningMethodHS256, testKey, claims)

	set, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify failed for correct issuer: %v", err)
	}
	if set.Issuer != "palisade" {
		t.Errorf("Issuer: expected palisade, got %q", set.Issuer)
	}
}
