package config

import (
	"os"
	"testing"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.BillingAutoCategory != "dyes" {
		t.Errorf("expected default auto-billing category dyes, got %q", cfg.BillingAutoCategory)
	}
	if cfg.FileStoreBackend != "memory" {
		t.Errorf("expected default file store memory, got %q", cfg.FileStoreBackend)
	}
	if !cfg.IsDev() {
		t.Error("expected default env to be development")
	}
}

func TestValidate_ProductionRequiresJWTSecret(t *testing.T) {
	cfg := &Config{Env: "production", FileStoreBackend: "memory", BillingAutoCategory: "dyes"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing JWT_SECRET in production")
	}
	cfg.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_S3BackendRequiresBucket(t *testing.T) {
	cfg := &Config{Env: "development", FileStoreBackend: "s3", BillingAutoCategory: "dyes"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing S3_BUCKET")
	}
	cfg.S3Bucket = "clinic-uploads"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing S3_REGION")
	}
	cfg.S3Region = "eu-central-1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownFileStoreBackend(t *testing.T) {
	cfg := &Config{Env: "development", FileStoreBackend: "tape", BillingAutoCategory: "dyes"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown file store backend")
	}
}
