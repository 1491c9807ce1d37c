package config

import (
	"errors"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		shouldSet    bool
		want         int
	}{
		{
			name:         "returns environment variable as int when set with valid integer",
			key:          "TEST_INT_VAR",
			defaultValue: 100,
			envValue:     "200",
			shouldSet:    true,
			want:         200,
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_INT_VAR_MISSING",
			defaultValue: 100,
			want:         100,
		},
		{
			name:         "returns default when environment variable is not a valid integer",
			key:          "TEST_INT_VAR_INVALID",
			defaultValue: 100,
			envValue:     "not_a_number",
			shouldSet:    true,
			want:         100,
		},
		{
			name:         "handles zero",
			key:          "TEST_INT_VAR_ZERO",
			defaultValue: 100,
			envValue:     "0",
			shouldSet:    true,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL_TRUE", "true")
	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_BOOL_GARBAGE", "maybe")

	if !getEnvAsBool("TEST_BOOL_TRUE", false) {
		t.Error("getEnvAsBool(true) = false, want true")
	}
	if !getEnvAsBool("TEST_BOOL_ONE", false) {
		t.Error("getEnvAsBool(1) = false, want true")
	}
	if getEnvAsBool("TEST_BOOL_GARBAGE", false) {
		t.Error("getEnvAsBool(maybe) = true, want default false")
	}
	if !getEnvAsBool("TEST_BOOL_UNSET", true) {
		t.Error("getEnvAsBool(unset) = false, want default true")
	}
}

func TestLoad_RequiresWebhookSecret(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "")

	cfg, err := Load()
	if !errors.Is(err, ErrWebhookSecretRequired) {
		t.Fatalf("Load() error = %v, want ErrWebhookSecretRequired", err)
	}
	if cfg != nil {
		t.Errorf("Load() config = %+v, want nil", cfg)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", testWebhookSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.WebhookSecret != testWebhookSecret {
		t.Errorf("WebhookSecret = %q, want %q", cfg.WebhookSecret, testWebhookSecret)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ClerkAPIURL != defaultClerkAPIURL {
		t.Errorf("ClerkAPIURL = %q, want %q", cfg.ClerkAPIURL, defaultClerkAPIURL)
	}
	if cfg.ClerkAPIRetryMax != 3 {
		t.Errorf("ClerkAPIRetryMax = %d, want 3", cfg.ClerkAPIRetryMax)
	}
	if cfg.MaxRequestBodyBytes != defaultMaxRequestBodyBytes {
		t.Errorf("MaxRequestBodyBytes = %d, want %d", cfg.MaxRequestBodyBytes, defaultMaxRequestBodyBytes)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled = true, want false by default")
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.DatabaseMaxConns != 10 {
		t.Errorf("DatabaseMaxConns = %d, want 10", cfg.DatabaseMaxConns)
	}
	if cfg.MigrateOnStartup {
		t.Error("MigrateOnStartup = true, want false by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", testWebhookSecret)
	t.Setenv("PORT", "3000")
	t.Setenv("CLERK_API_URL", "http://clerk.local")
	t.Setenv("CLERK_SECRET_KEY", "sk_test_123")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("OTEL_TRACES_EXPORTER", " STDOUT ")
	t.Setenv("DATABASE_MAX_CONNS", "25")
	t.Setenv("MIGRATE_ON_STARTUP", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.ClerkAPIURL != "http://clerk.local" {
		t.Errorf("ClerkAPIURL = %q", cfg.ClerkAPIURL)
	}
	if cfg.ClerkSecretKey != "sk_test_123" {
		t.Errorf("ClerkSecretKey = %q", cfg.ClerkSecretKey)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled = false, want true")
	}
	if cfg.OtelTracesExporter != "stdout" {
		t.Errorf("OtelTracesExporter = %q, want stdout", cfg.OtelTracesExporter)
	}
	if cfg.DatabaseMaxConns != 25 {
		t.Errorf("DatabaseMaxConns = %d, want 25", cfg.DatabaseMaxConns)
	}
	if !cfg.MigrateOnStartup {
		t.Error("MigrateOnStartup = false, want true")
	}
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", testWebhookSecret)

	t.Run("MAX_REQUEST_BODY_BYTES must be positive", func(t *testing.T) {
		t.Setenv("MAX_REQUEST_BODY_BYTES", "0")
		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for MAX_REQUEST_BODY_BYTES <= 0")
		}
	})

	t.Run("CLERK_API_RETRY_MAX must not be negative", func(t *testing.T) {
		t.Setenv("CLERK_API_RETRY_MAX", "-1")
		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for CLERK_API_RETRY_MAX < 0")
		}
	})

	t.Run("DATABASE_MAX_CONNS must be positive", func(t *testing.T) {
		t.Setenv("DATABASE_MAX_CONNS", "-4")
		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for DATABASE_MAX_CONNS <= 0")
		}
	})

	t.Run("SHUTDOWN_TIMEOUT_SECONDS must be positive", func(t *testing.T) {
		t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "0")
		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for SHUTDOWN_TIMEOUT_SECONDS <= 0")
		}
	})
}
