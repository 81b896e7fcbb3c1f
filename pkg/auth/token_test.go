package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "secret",
		Issuer:    "https://auth.example.com/auth/v1",
		Audience:  "authenticated",
		AdminRole: "admin",
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testConfig()
	now := time.Now().UTC()

	token, err := MintAccessToken(cfg, now, time.Hour, AccessTokenClaims{
		Email:       "ops@example.com",
		Role:        "authenticated",
		AppMetadata: AppMetadata{Role: "admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user-123",
		},
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID() != "user-123" {
		t.Fatalf("unexpected subject %q", claims.UserID())
	}
	if !claims.HasRole("admin") {
		t.Fatal("expected admin role from app_metadata")
	}
	if claims.EffectiveRole() != "admin" {
		t.Fatalf("unexpected effective role %q", claims.EffectiveRole())
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %q, got %q", cfg.Issuer, claims.Issuer)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.JWTSecret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseAccessTokenRejectsAudience(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123", Audience: jwt.ClaimStrings{"anon"}},
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected audience error")
	}
}

func TestHasRoleFallsBackToTopLevelClaim(t *testing.T) {
	claims := &AccessTokenClaims{Role: "Admin"}
	if !claims.HasRole("admin") {
		t.Fatal("expected case-insensitive top-level role match")
	}
	claims = &AccessTokenClaims{AppMetadata: AppMetadata{Roles: []string{"support", "admin"}}}
	if !claims.HasRole("admin") {
		t.Fatal("expected app_metadata roles match")
	}
	if claims.HasRole("") {
		t.Fatal("blank role never matches")
	}
}
