package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
provider:
  base_url: https://pay.example.com
  webhook_secret: hooksecret
checkout:
  attempts_per_window: 5
  attempt_window: 30s
  pending_ttl: 45m
catalog:
  cache_ttl: 10s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Provider.BaseURL != "https://pay.example.com" {
		t.Fatalf("unexpected provider base url: %s", cfg.Provider.BaseURL)
	}
	if cfg.Provider.WebhookSecret != "hooksecret" {
		t.Fatalf("unexpected webhook secret: %s", cfg.Provider.WebhookSecret)
	}
	if cfg.Checkout.AttemptsPerWindow != 5 {
		t.Fatalf("unexpected attempts per window: %d", cfg.Checkout.AttemptsPerWindow)
	}
	if cfg.Checkout.AttemptWindow != 30*time.Second {
		t.Fatalf("unexpected attempt window: %s", cfg.Checkout.AttemptWindow)
	}
	if cfg.Checkout.PendingTTL != 45*time.Minute {
		t.Fatalf("unexpected pending ttl: %s", cfg.Checkout.PendingTTL)
	}
	if cfg.Catalog.CacheTTL != 10*time.Second {
		t.Fatalf("unexpected catalog cache ttl: %s", cfg.Catalog.CacheTTL)
	}

	if cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Fatalf("http read timeout default should stay 5s, got %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Checkout.ExpireInterval != 5*time.Minute {
		t.Fatalf("expire interval default should stay 5m, got %s", cfg.Checkout.ExpireInterval)
	}
	if cfg.Provider.Timeout != 10*time.Second {
		t.Fatalf("provider timeout default should stay 10s, got %s", cfg.Provider.Timeout)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Auth.JWTAccessTTL != 15*time.Minute {
		t.Fatalf("unexpected default access ttl: %s", cfg.Auth.JWTAccessTTL)
	}
	if cfg.Checkout.AttemptsPerWindow != 10 {
		t.Fatalf("unexpected default attempts per window: %d", cfg.Checkout.AttemptsPerWindow)
	}
	if cfg.Checkout.PendingTTL != 30*time.Minute {
		t.Fatalf("unexpected default pending ttl: %s", cfg.Checkout.PendingTTL)
	}
	if cfg.Checkout.ExpireBatchSize != 100 {
		t.Fatalf("unexpected default expire batch size: %d", cfg.Checkout.ExpireBatchSize)
	}
	if cfg.S3.Bucket != "learnado-receipts" {
		t.Fatalf("unexpected default receipts bucket: %s", cfg.S3.Bucket)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("PROVIDER_WEBHOOK_SECRET", "env-secret")
	t.Setenv("CHECKOUT_PENDING_TTL", "1h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("env http addr not applied: %s", cfg.HTTP.Addr)
	}
	if cfg.Provider.WebhookSecret != "env-secret" {
		t.Fatalf("env webhook secret not applied: %s", cfg.Provider.WebhookSecret)
	}
	if cfg.Checkout.PendingTTL != time.Hour {
		t.Fatalf("env pending ttl not applied: %s", cfg.Checkout.PendingTTL)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_USE_SSL",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"PROVIDER_BASE_URL",
		"PROVIDER_API_KEY",
		"PROVIDER_WEBHOOK_SECRET",
		"PROVIDER_TIMEOUT",
		"NOTIFY_BASE_URL",
		"NOTIFY_API_KEY",
		"NOTIFY_TIMEOUT",
		"CHECKOUT_ATTEMPTS_PER_WINDOW",
		"CHECKOUT_ATTEMPT_WINDOW",
		"CHECKOUT_PENDING_TTL",
		"CHECKOUT_EXPIRE_INTERVAL",
		"CHECKOUT_EXPIRE_BATCH_SIZE",
		"CATALOG_CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}
