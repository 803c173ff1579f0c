package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("EMAIL_USER", "studio@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.App.Addr())
	}
	if cfg.App.RequestTimeout() != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.App.RequestTimeout())
	}
	if cfg.Auth.CookieName != "portal_session" {
		t.Fatalf("cookie name = %q", cfg.Auth.CookieName)
	}
	if cfg.Jobs.InvoiceSweepInterval != time.Hour {
		t.Fatalf("sweep interval = %v", cfg.Jobs.InvoiceSweepInterval)
	}
	if cfg.Mail.Sender() != "studio@example.com" || cfg.Mail.Inbox() != "studio@example.com" {
		t.Fatalf("mail addresses fall back to EMAIL_USER, got %q / %q", cfg.Mail.Sender(), cfg.Mail.Inbox())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("EMAIL_FROM", "noreply@example.com")
	t.Setenv("EMAIL_TO", "inbox@example.com")
	t.Setenv("FEED_PING_INTERVAL_SECONDS", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "9090" {
		t.Fatalf("port = %q", cfg.App.Port)
	}
	if cfg.App.RequestTimeout() != 0 {
		t.Fatalf("expected disabled timeout, got %v", cfg.App.RequestTimeout())
	}
	if cfg.Mail.Sender() != "noreply@example.com" || cfg.Mail.Inbox() != "inbox@example.com" {
		t.Fatalf("unexpected mail addresses %q / %q", cfg.Mail.Sender(), cfg.Mail.Inbox())
	}
	if cfg.Feed.PingInterval() != 10*time.Second {
		t.Fatalf("ping interval = %v", cfg.Feed.PingInterval())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("AUTH_BCRYPT_COST", "2")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for bcrypt cost below minimum")
	}
}
