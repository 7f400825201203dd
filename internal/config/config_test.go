package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "test")
	t.Setenv("IDENTITY_JWKS_URL", "https://idp.example.com/jwks")
	t.Setenv("IDENTITY_AUDIENCE", "scholarships-test")
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("DB_USER", "postgres")
}

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setRequiredEnv(t)
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("NOTIFICATION_TRANSPORT", "nats")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "https://idp.example.com/jwks", cfg.Identity.JWKSURL)
	assert.Equal(t, time.Hour, cfg.Identity.KeyRefreshInterval)
	assert.Equal(t, "nats", cfg.Notification.Transport)
	assert.Equal(t, 5, cfg.RateLimit.LoginLimit)
	assert.Equal(t, "@every 5m", cfg.Scheduler.DeadlineCloseSchedule)
	assert.Contains(t, cfg.Uploads.AllowedTypes, ".pdf")
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingRequiredSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("ENV", "test")
	t.Setenv("IDENTITY_JWKS_URL", "")
	t.Setenv("IDENTITY_AUDIENCE", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DB_USER", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity.jwks_url")
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestValidate_NotificationTransport(t *testing.T) {
	cfg := Config{
		Identity:     IdentityConfig{JWKSURL: "x", Audience: "y"},
		Session:      SessionConfig{Secret: "s"},
		Database:     DatabaseConfig{User: "u"},
		Notification: NotificationConfig{Transport: "pigeon"},
	}
	assert.ErrorContains(t, cfg.Validate(), "pigeon")

	cfg.Notification.Transport = "smtp"
	assert.ErrorContains(t, cfg.Validate(), "smtp.host")

	cfg.SMTP.Host = "smtp.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Env: "prod"}).IsProduction())
	assert.True(t, (&Config{Env: "gcp-gke"}).IsProduction())
	assert.False(t, (&Config{Env: "local"}).IsProduction())
}
