package config

import (
	"os"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"ROOMBOOK_HTTP_PORT",
			"ROOMBOOK_SQLITE_DSN",
			"ROOMBOOK_SESSION_TTL",
			"ROOMBOOK_COMPLETION_INTERVAL",
			"ROOMBOOK_OCCUPANCY_INTERVAL",
			"ROOMBOOK_WS_SEND_BUFFER",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		const secret = "super-secret"
		t.Setenv("ROOMBOOK_SESSION_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:roombook.db?_foreign_keys=on" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionSecret != secret {
			t.Fatalf("expected session secret to be %q, got %q", secret, cfg.SessionSecret)
		}
		if cfg.CompletionInterval != time.Minute || cfg.OccupancyInterval != time.Minute {
			t.Fatalf("expected one minute loop intervals, got %s and %s", cfg.CompletionInterval, cfg.OccupancyInterval)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		for _, key := range []string{
			"ROOMBOOK_SESSION_SECRET",
			"ROOMBOOK_HTTP_PORT",
			"ROOMBOOK_SQLITE_DSN",
		} {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: ROOMBOOK_SESSION_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("ROOMBOOK_SESSION_SECRET", "secret-value")
		t.Setenv("ROOMBOOK_HTTP_PORT", "9090")
		t.Setenv("ROOMBOOK_SQLITE_DSN", "file:/tmp/roombook.db")
		t.Setenv("ROOMBOOK_SESSION_TTL", "12h")
		t.Setenv("ROOMBOOK_COMPLETION_INTERVAL", "30s")
		t.Setenv("ROOMBOOK_OCCUPANCY_INTERVAL", "15s")
		t.Setenv("ROOMBOOK_WS_SEND_BUFFER", "64")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("expected session TTL 12h, got %s", cfg.SessionTTL)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/roombook.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.CompletionInterval != 30*time.Second {
			t.Fatalf("expected completion interval 30s, got %s", cfg.CompletionInterval)
		}
		if cfg.OccupancyInterval != 15*time.Second {
			t.Fatalf("expected occupancy interval 15s, got %s", cfg.OccupancyInterval)
		}
		if cfg.WSSendBuffer != 64 {
			t.Fatalf("expected send buffer 64, got %d", cfg.WSSendBuffer)
		}
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		t.Setenv("ROOMBOOK_SESSION_SECRET", "secret-value")
		t.Setenv("ROOMBOOK_HTTP_PORT", "not-a-port")
		t.Setenv("ROOMBOOK_SESSION_TTL", "-1h")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for malformed values")
		}
		expected := "invalid environment variable values: ROOMBOOK_HTTP_PORT, ROOMBOOK_SESSION_TTL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}
