// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. FOLLOWWATCH_DB_DSN.
const EnvPrefix = "FOLLOWWATCH"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Email      EmailConfig      `mapstructure:"email"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ClientOrigin    string        `mapstructure:"client_origin"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// ProviderPaths names the provider endpoints.
type ProviderPaths struct {
	ResolveID   string `mapstructure:"resolve_id"`
	Profile     string `mapstructure:"profile"`
	Followings  string `mapstructure:"followings"`
	RecentPosts string `mapstructure:"recent_posts"`
}

// ProviderConfig configures the upstream social data provider.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Host           string        `mapstructure:"host"`
	APIKey         string        `mapstructure:"api_key"`
	Paths          ProviderPaths `mapstructure:"paths"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffJitter  time.Duration `mapstructure:"backoff_jitter"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// CacheConfig sizes the response cache and sets per-kind TTLs.
type CacheConfig struct {
	Size        int           `mapstructure:"size"`
	IdentityTTL time.Duration `mapstructure:"identity_ttl"`
	ProfileTTL  time.Duration `mapstructure:"profile_ttl"`
	ListTTL     time.Duration `mapstructure:"list_ttl"`
	PostsTTL    time.Duration `mapstructure:"posts_ttl"`
}

// TrackerConfig bounds tracker creation.
type TrackerConfig struct {
	MaxPerOwner  int `mapstructure:"max_per_owner"`
	MaxFollowing int `mapstructure:"max_following"`
}

// PollerConfig drives the scheduled poll cycles.
type PollerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Schedule     string        `mapstructure:"schedule"`
	SmokeDelay   time.Duration `mapstructure:"smoke_delay"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
}

// ClassifierConfig configures the vision classifier used by media checks.
type ClassifierConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Subject       string        `mapstructure:"subject"`
	Concurrency   int           `mapstructure:"concurrency"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

// EmailConfig configures outbound notifications. An empty key logs mail instead of sending it.
type EmailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	SendGridHost   string `mapstructure:"sendgrid_host"`
	Sender         string `mapstructure:"sender"`
}

// DBConfig controls access to the relational database. An empty DSN selects in-memory stores.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// StorageConfig selects the snapshot archive backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// PubSubConfig holds metadata for change event publication.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether change events should be published.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.TopicName != ""
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Hosting platforms inject a bare PORT.
	if err := v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.client_origin", "")
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 168*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("provider.base_url", "https://instagram-best-experience.p.rapidapi.com")
	v.SetDefault("provider.host", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.paths.resolve_id", "/user_id_by_username")
	v.SetDefault("provider.paths.profile", "/user_info")
	v.SetDefault("provider.paths.followings", "/user_following")
	v.SetDefault("provider.paths.recent_posts", "/user_feed")
	v.SetDefault("provider.timeout", 20*time.Second)
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.backoff_base", 1500*time.Millisecond)
	v.SetDefault("provider.backoff_jitter", 400*time.Millisecond)
	v.SetDefault("provider.backoff_max", 60*time.Second)
	v.SetDefault("provider.rate_limit_rps", 0)
	v.SetDefault("provider.rate_limit_burst", 1)
	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.identity_ttl", 6*time.Hour)
	v.SetDefault("cache.profile_ttl", 30*time.Minute)
	v.SetDefault("cache.list_ttl", 10*time.Minute)
	v.SetDefault("cache.posts_ttl", 5*time.Minute)
	v.SetDefault("tracker.max_per_owner", 3)
	v.SetDefault("tracker.max_following", 100)
	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.schedule", "0 * * * *")
	v.SetDefault("poller.smoke_delay", time.Duration(0))
	v.SetDefault("poller.cycle_timeout", 30*time.Minute)
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.subject", "a baby (infant or toddler)")
	v.SetDefault("classifier.concurrency", 4)
	v.SetDefault("classifier.call_timeout", 30*time.Second)
	v.SetDefault("classifier.max_image_bytes", 20<<20)
	v.SetDefault("classifier.fetch_timeout", 15*time.Second)
	v.SetDefault("email.sendgrid_api_key", "")
	v.SetDefault("email.sendgrid_host", "")
	v.SetDefault("email.sender", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.migrate", true)
	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be > 0"))
	}
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("provider.timeout must be > 0"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.max_retries must be >= 0"))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, errors.New("cache.size must be > 0"))
	}
	if c.Poller.Enabled && strings.TrimSpace(c.Poller.Schedule) == "" {
		errs = append(errs, errors.New("poller.schedule must be set when the poller is enabled"))
	}
	if c.Classifier.Concurrency <= 0 {
		errs = append(errs, errors.New("classifier.concurrency must be > 0"))
	}
	if c.Email.SendGridAPIKey != "" && c.Email.Sender == "" {
		errs = append(errs, errors.New("email.sender must be set when email.sendgrid_api_key is set"))
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir must be set for the local backend"))
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("storage.gcs_bucket must be set for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend))
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		errs = append(errs, errors.New("pubsub.project_id and pubsub.topic_name must be set together"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
