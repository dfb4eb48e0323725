package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FOLLOWWATCH_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "https://instagram-best-experience.p.rapidapi.com", cfg.Provider.BaseURL)
	assert.Equal(t, "/user_following", cfg.Provider.Paths.Followings)
	assert.Equal(t, 3, cfg.Provider.MaxRetries)
	assert.Equal(t, 1500*time.Millisecond, cfg.Provider.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.Provider.BackoffMax)
	assert.Equal(t, 6*time.Hour, cfg.Cache.IdentityTTL)
	assert.Equal(t, 3, cfg.Tracker.MaxPerOwner)
	assert.Equal(t, 100, cfg.Tracker.MaxFollowing)
	assert.True(t, cfg.Poller.Enabled)
	assert.Equal(t, "0 * * * *", cfg.Poller.Schedule)
	assert.Zero(t, cfg.Poller.SmokeDelay)
	assert.Equal(t, "gpt-4o-mini", cfg.Classifier.Model)
	assert.Equal(t, 4, cfg.Classifier.Concurrency)
	assert.Equal(t, int64(20<<20), cfg.Classifier.MaxImageBytes)
	assert.Equal(t, StorageNone, cfg.Storage.Backend)
	assert.Equal(t, "snapshots", cfg.Storage.Prefix)
	assert.False(t, cfg.PubSub.Enabled())
	assert.Empty(t, cfg.DB.DSN)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Setenv("PORT", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  client_origin: https://app.example
auth:
  jwt_secret: ` + testSecret + `
  token_ttl: 24h
provider:
  api_key: key
  max_retries: 5
  backoff_base: 250ms
  rate_limit_rps: 2.5
cache:
  list_ttl: 1m
poller:
  schedule: "*/15 * * * *"
  smoke_delay: 30s
email:
  sendgrid_api_key: sg-key
  sender: alerts@example.com
storage:
  backend: gcs
  gcs_bucket: archive
pubsub:
  project_id: proj
  topic_name: changes
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://app.example", cfg.Server.ClientOrigin)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "key", cfg.Provider.APIKey)
	assert.Equal(t, 5, cfg.Provider.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Provider.BackoffBase)
	assert.InDelta(t, 2.5, cfg.Provider.RateLimitRPS, 0.001)
	assert.Equal(t, time.Minute, cfg.Cache.ListTTL)
	assert.Equal(t, "*/15 * * * *", cfg.Poller.Schedule)
	assert.Equal(t, 30*time.Second, cfg.Poller.SmokeDelay)
	assert.Equal(t, "alerts@example.com", cfg.Email.Sender)
	assert.Equal(t, StorageGCS, cfg.Storage.Backend)
	assert.True(t, cfg.PubSub.Enabled())
	assert.False(t, cfg.Logging.Development)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FOLLOWWATCH_AUTH_JWT_SECRET", testSecret)
	t.Setenv("FOLLOWWATCH_DB_DSN", "postgres://localhost/followwatch")
	t.Setenv("FOLLOWWATCH_TRACKER_MAX_PER_OWNER", "7")
	t.Setenv("PORT", "9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/followwatch", cfg.DB.DSN)
	assert.Equal(t, 7, cfg.Tracker.MaxPerOwner)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:     ServerConfig{Port: 8080},
		Auth:       AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
		Provider:   ProviderConfig{BaseURL: "https://provider.example", Timeout: time.Second},
		Cache:      CacheConfig{Size: 10},
		Poller:     PollerConfig{Enabled: true, Schedule: "0 * * * *"},
		Classifier: ClassifierConfig{Concurrency: 1},
		Storage:    StorageConfig{Backend: StorageNone},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "short secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, want: "auth.jwt_secret"},
		{name: "bad base url", mutate: func(c *Config) { c.Provider.BaseURL = "ftp://x" }, want: "provider.base_url"},
		{name: "negative retries", mutate: func(c *Config) { c.Provider.MaxRetries = -1 }, want: "provider.max_retries"},
		{name: "empty schedule", mutate: func(c *Config) { c.Poller.Schedule = " " }, want: "poller.schedule"},
		{name: "sender missing", mutate: func(c *Config) { c.Email.SendGridAPIKey = "k" }, want: "email.sender"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Backend = StorageLocal }, want: "storage.local_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, want: "storage.gcs_bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "half pubsub", mutate: func(c *Config) { c.PubSub.ProjectID = "p" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
