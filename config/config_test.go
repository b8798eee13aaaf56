package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("SYNC_PROBE_INTERVAL", "")
	t.Setenv("CONTACT_RATE_LIMIT", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Service.Port)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, 15*time.Second, cfg.Sync.ProbeInterval)
	assert.Equal(t, 2*time.Second, cfg.Sync.InitialDelay)
	assert.Equal(t, 60*time.Second, cfg.Relay.ContactRateLimit)
	assert.Equal(t, "data/local.db", cfg.Local.Path)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Mail(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("SMTP_USER", "")
	t.Setenv("SMTP_PASS", "")
	t.Setenv("FROM_EMAIL", "")

	cfg := Load()
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, "no-reply@garciabuilder.fitness", cfg.Mail.From)
	assert.True(t, cfg.Mail.ContactConfirmation)
	assert.False(t, cfg.Mail.Enabled(), "credentials are required")

	t.Setenv("SMTP_USER", "coach")
	t.Setenv("SMTP_PASS", "secret")
	assert.True(t, Load().Mail.Enabled())

	cfg.Mail.Port = 0
	cfg.Mail.From = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_PORT must be between 1 and 65535")
	assert.Contains(t, err.Error(), "FROM_EMAIL is required")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNC_PROBE_INTERVAL", "3s")
	t.Setenv("SYNC_CONCURRENCY", "8")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("CONTACT_RATE_LIMIT", "not-a-duration")

	cfg := Load()

	assert.Equal(t, 3*time.Second, cfg.Sync.ProbeInterval)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, "https://abc.supabase.co", cfg.Supabase.URL, "trailing slash is trimmed")
	assert.Equal(t, 60*time.Second, cfg.Relay.ContactRateLimit, "invalid duration falls back")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Load()
	cfg.Service.Port = "http"
	cfg.Logging.Level = "verbose"
	cfg.Database.Host = "db.example.com"
	cfg.Database.User = ""
	cfg.Database.Password = ""
	cfg.Sync.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "PORT must be a valid number")
	assert.Contains(t, msg, "LOG_LEVEL must be one of")
	assert.Contains(t, msg, "DB_USER is required")
	assert.Contains(t, msg, "DB_PASSWORD is required")
	assert.Contains(t, msg, "SYNC_CONCURRENCY must be at least 1")
}

func TestValidate_SupabaseNeedsAnonKey(t *testing.T) {
	cfg := Load()
	cfg.Supabase.URL = "https://abc.supabase.co"
	cfg.Supabase.AnonKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
}

func TestCatalogYAML(t *testing.T) {
	t.Run("embedded by default", func(t *testing.T) {
		cfg := &Config{}
		data, err := cfg.CatalogYAML()
		require.NoError(t, err)
		assert.Contains(t, string(data), "starter")
	})

	t.Run("file override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("currency: \"$\"\n"), 0o600))

		cfg := &Config{Pricing: PricingConfig{CatalogPath: path}}
		data, err := cfg.CatalogYAML()
		require.NoError(t, err)
		assert.Equal(t, "currency: \"$\"\n", string(data))
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{Pricing: PricingConfig{CatalogPath: filepath.Join(t.TempDir(), "nope.yaml")}}
		_, err := cfg.CatalogYAML()
		assert.Error(t, err)
	})
}
