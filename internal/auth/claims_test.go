package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signedToken builds an HS256 token expiring after the given offset. The
// signing key is irrelevant: decoding is unverified.
func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

// TestDecodeClaims verifies subject and expiry come out of a decoded token.
func TestDecodeClaims(t *testing.T) {
	token := signedToken(t, time.Hour)

	claims, err := DecodeClaims(token)
	if err != nil {
		t.Fatalf("DecodeClaims() error = %v, want nil", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-1")
	}

	until := time.Until(claims.ExpiresAt)
	if until < 55*time.Minute || until > 65*time.Minute {
		t.Errorf("ExpiresAt is %v away, want ~1h", until)
	}
	if claims.IssuedAt.IsZero() {
		t.Error("IssuedAt should be set")
	}
}

// TestDecodeClaimsRejectsGarbage verifies non-JWT input fails to decode.
func TestDecodeClaimsRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-a-token", "a.b", "x.y.z"} {
		if _, err := DecodeClaims(input); err == nil {
			t.Errorf("DecodeClaims(%q) should return error", input)
		}
	}
}

// TestExpiresWithin verifies the buffer window comparison.
func TestExpiresWithin(t *testing.T) {
	claims, err := DecodeClaims(signedToken(t, 30*time.Second))
	if err != nil {
		t.Fatalf("DecodeClaims() error = %v, want nil", err)
	}

	if !claims.ExpiresWithin(60 * time.Second) {
		t.Error("token expiring in 30s should be within a 60s buffer")
	}
	if claims.ExpiresWithin(10 * time.Second) {
		t.Error("token expiring in 30s should not be within a 10s buffer")
	}
}

// TestExpiresWithinNoExpClaim verifies tokens without exp never report
// near-expiry.
func TestExpiresWithinNoExpClaim(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}

	claims, err := DecodeClaims(token)
	if err != nil {
		t.Fatalf("DecodeClaims() error = %v, want nil", err)
	}
	if claims.ExpiresWithin(24 * time.Hour) {
		t.Error("token without exp must not report near-expiry")
	}
}

// TestTokenNeedsRefresh covers the decision table the manager relies on.
func TestTokenNeedsRefresh(t *testing.T) {
	buffer := 60 * time.Second

	if TokenNeedsRefresh(signedToken(t, time.Hour), buffer) {
		t.Error("fresh token should not need refresh")
	}
	if !TokenNeedsRefresh(signedToken(t, 30*time.Second), buffer) {
		t.Error("token inside the buffer should need refresh")
	}
	if !TokenNeedsRefresh(signedToken(t, -time.Minute), buffer) {
		t.Error("expired token should need refresh")
	}
	if !TokenNeedsRefresh("garbage", buffer) {
		t.Error("undecodable token should need refresh")
	}
}
