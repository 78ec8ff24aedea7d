package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("MESSENGER_JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.Port)
	}
	if cfg.TokenExpiry() != 7*24*time.Hour {
		t.Fatalf("expected 7d token expiry, got %v", cfg.TokenExpiry())
	}
	if cfg.ClientURL != "http://localhost:5173" {
		t.Fatalf("unexpected client url: %s", cfg.ClientURL)
	}
	if cfg.UploadFolder != "messenger_uploads" {
		t.Fatalf("unexpected upload folder: %s", cfg.UploadFolder)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("MESSENGER_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("MESSENGER_JWT_SECRET", "secret")
	t.Setenv("MESSENGER_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("MESSENGER_JWT_SECRET", "secret")
	t.Setenv("MESSENGER_PORT", "8080")
	t.Setenv("MESSENGER_TOKEN_EXPIRY_SECONDS", "3600")
	t.Setenv("MESSENGER_DATABASE_URL", "postgres://localhost/messenger")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.TokenExpiry() != time.Hour {
		t.Fatalf("expected 1h expiry, got %v", cfg.TokenExpiry())
	}
	if cfg.DatabaseURL == "" {
		t.Fatal("expected database url to be set")
	}
}
