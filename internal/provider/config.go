package provider

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Paths holds the per-operation endpoint paths, relative to the base URL.
type Paths struct {
	ResolveID   string `mapstructure:"resolve_id"`
	Profile     string `mapstructure:"profile"`
	Followings  string `mapstructure:"followings"`
	RecentPosts string `mapstructure:"recent_posts"`
}

// Config controls the provider client.
type Config struct {
	BaseURL      string
	Host         string
	APIKey       string
	APIKeyHeader string
	HostHeader   string
	Paths        Paths
	Timeout      time.Duration

	MaxRetries    int
	BackoffBase   time.Duration
	BackoffJitter time.Duration
	BackoffMax    time.Duration

	IdentityTTL time.Duration
	ProfileTTL  time.Duration
	ListTTL     time.Duration
	PostsTTL    time.Duration
}

// Default values mirror the provider the service was built against.
const (
	DefaultBaseURL      = "https://instagram-best-experience.p.rapidapi.com"
	DefaultAPIKeyHeader = "X-RapidAPI-Key"
	DefaultHostHeader   = "X-RapidAPI-Host"
)

// DefaultPaths returns the stock endpoint paths.
func DefaultPaths() Paths {
	return Paths{
		ResolveID:   "/user_id_by_username",
		Profile:     "/user_info",
		Followings:  "/user_following",
		RecentPosts: "/user_feed",
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Host == "" {
		if u, err := url.Parse(c.BaseURL); err == nil {
			c.Host = u.Host
		}
	}
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = DefaultAPIKeyHeader
	}
	if c.HostHeader == "" {
		c.HostHeader = DefaultHostHeader
	}
	defaults := DefaultPaths()
	if c.Paths.ResolveID == "" {
		c.Paths.ResolveID = defaults.ResolveID
	}
	if c.Paths.Profile == "" {
		c.Paths.Profile = defaults.Profile
	}
	if c.Paths.Followings == "" {
		c.Paths.Followings = defaults.Followings
	}
	if c.Paths.RecentPosts == "" {
		c.Paths.RecentPosts = defaults.RecentPosts
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 1500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Minute
	}
	if c.IdentityTTL <= 0 {
		c.IdentityTTL = 6 * time.Hour
	}
	if c.ProfileTTL <= 0 {
		c.ProfileTTL = 30 * time.Minute
	}
	if c.ListTTL <= 0 {
		c.ListTTL = 10 * time.Minute
	}
	if c.PostsTTL <= 0 {
		c.PostsTTL = 5 * time.Minute
	}
	return c
}

func (c Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parse provider base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider base url must be http(s), got %q", c.BaseURL)
	}
	return nil
}
