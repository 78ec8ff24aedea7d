package auth

import (
	"testing"
	"time"
)

func TestCreateAndVerifyToken(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}

	token, err := CreateToken("user-1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(token, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", claims.UserID)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	token, err := CreateToken("user-1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := VerifyToken(token, TokenConfig{Secret: "other", Expiry: time.Hour}); err == nil {
		t.Fatal("expected verification to fail with wrong secret")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Millisecond, Issuer: "test"}
	token, err := CreateToken("user-1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := VerifyToken(token, cfg); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestCreateTokenValidation(t *testing.T) {
	if _, err := CreateToken("", TokenConfig{Secret: "s", Expiry: time.Hour}); err == nil {
		t.Fatal("expected error for missing userID")
	}
	if _, err := CreateToken("u", TokenConfig{Expiry: time.Hour}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
