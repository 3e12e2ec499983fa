package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", c.Port)
	}
	if c.SignedURLTTL() != time.Hour {
		t.Fatalf("expected 1h signed URL TTL, got %s", c.SignedURLTTL())
	}
	if c.ReminderLookahead() != 72*time.Hour {
		t.Fatalf("expected 72h lookahead, got %s", c.ReminderLookahead())
	}
	if c.DemoUserID() != uuid.Nil {
		t.Fatalf("expected demo disabled, got %s", c.DemoUserID())
	}
	if c.StorageEnabled() {
		t.Fatal("expected storage disabled without credentials")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	demo := uuid.New()
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/battdevy")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("DEMO_USER_ID", demo.String())
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CORS_ALLOW_ALL", "true")
	t.Setenv("S3_ENDPOINT", "https://r2.example")
	t.Setenv("S3_ACCESS_KEY_ID", "id")
	t.Setenv("S3_SECRET_ACCESS_KEY", "key")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "9000" || c.Database.URL != "postgres://u:p@db:5432/battdevy" {
		t.Fatalf("unexpected overrides: %+v", c)
	}
	if c.JWTExpiry() != 2*time.Hour {
		t.Fatalf("expected 2h expiry, got %s", c.JWTExpiry())
	}
	if c.DemoUserID() != demo {
		t.Fatalf("expected demo id %s, got %s", demo, c.DemoUserID())
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, c.AllowedOrigins()); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
	if !c.CORS.AllowAll || c.RateLimit.PerMinute != 10 || !c.StorageEnabled() {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"bad demo id", map[string]string{"JWT_SECRET": "s", "DEMO_USER_ID": "not-a-uuid"}},
		{"url ttl too short", map[string]string{"JWT_SECRET": "s", "SIGNED_URL_TTL_MINUTES": "5"}},
		{"zero expiry", map[string]string{"JWT_SECRET": "s", "JWT_EXPIRY_HOURS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
