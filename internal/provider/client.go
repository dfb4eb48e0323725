package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/cache"
	"github.com/JakeFAU/followwatch/internal/metrics"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

const (
	opResolveID   = "resolve_id"
	opProfile     = "profile"
	opFollowings  = "followings"
	opRecentPosts = "recent_posts"

	maxBodyBytes = 8 << 20
)

// Waiter paces outbound requests; *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLimiter installs a pacing limiter in front of every attempt.
func WithLimiter(w Waiter) Option {
	return func(c *Client) {
		c.limiter = w
	}
}

// WithSleeper overrides how retry waits are performed.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// Client implements tracker.SocialProvider over the provider's HTTP API.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *cache.Cache
	backoff *BackoffPolicy
	limiter Waiter
	sleep   Sleeper
	now     func() time.Time
	logger  *zap.Logger
}

var _ tracker.SocialProvider = (*Client)(nil)

// New builds a Client. The cache is shared with other callers and must not be nil.
func New(cfg Config, responses *cache.Cache, logger *zap.Logger, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if responses == nil {
		return nil, errors.New("provider: response cache is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   responses,
		backoff: NewBackoffPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffJitter, cfg.BackoffMax),
		sleep:   sleepContext,
		now:     time.Now,
		logger:  logger.Named("provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveID maps a handle to the provider's numeric account id.
func (c *Client) ResolveID(ctx context.Context, handle string) (string, error) {
	h, err := tracker.NormalizeHandle(handle)
	if err != nil {
		return "", err
	}
	key := "uid:" + h
	if id, ok := lookup[string](c, opResolveID, key); ok {
		return id, nil
	}
	body, err := c.get(ctx, opResolveID, c.cfg.Paths.ResolveID, url.Values{"username": {h}})
	if err != nil {
		return "", err
	}
	id, err := decodeUserID(body)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, id, c.cfg.IdentityTTL)
	return id, nil
}

// Profile fetches the account profile for a handle.
func (c *Client) Profile(ctx context.Context, handle string) (tracker.Profile, error) {
	h, err := tracker.NormalizeHandle(handle)
	if err != nil {
		return tracker.Profile{}, err
	}
	key := "profile:" + h
	if p, ok := lookup[tracker.Profile](c, opProfile, key); ok {
		return p, nil
	}
	body, err := c.get(ctx, opProfile, c.cfg.Paths.Profile, url.Values{"username": {h}})
	if err != nil {
		return tracker.Profile{}, err
	}
	p, err := decodeProfile(body)
	if err != nil {
		return tracker.Profile{}, err
	}
	if p.Handle == "" {
		p.Handle = h
	}
	c.cache.Set(key, p, c.cfg.ProfileTTL)
	if p.ID != "" {
		c.cache.Set("uid:"+h, p.ID, c.cfg.IdentityTTL)
	}
	return p, nil
}

// Followings lists the accounts the target follows. Empty results are returned but never cached.
func (c *Client) Followings(ctx context.Context, targetID string) ([]tracker.Account, error) {
	id, err := tracker.NormalizeID(targetID)
	if err != nil {
		return nil, err
	}
	key := "followings:" + id
	if accounts, ok := lookup[[]tracker.Account](c, opFollowings, key); ok {
		return slices.Clone(accounts), nil
	}
	body, err := c.get(ctx, opFollowings, c.cfg.Paths.Followings, url.Values{"user_id": {id}})
	if err != nil {
		return nil, err
	}
	accounts, err := decodeFollowings(body)
	if err != nil {
		return nil, err
	}
	if len(accounts) > 0 {
		c.cache.Set(key, slices.Clone(accounts), c.cfg.ListTTL)
	}
	return accounts, nil
}

// RecentPosts lists the target's most recent media. Empty results are never cached.
func (c *Client) RecentPosts(ctx context.Context, targetID string) ([]tracker.Post, error) {
	id, err := tracker.NormalizeID(targetID)
	if err != nil {
		return nil, err
	}
	key := "posts:" + id
	if posts, ok := lookup[[]tracker.Post](c, opRecentPosts, key); ok {
		return slices.Clone(posts), nil
	}
	body, err := c.get(ctx, opRecentPosts, c.cfg.Paths.RecentPosts, url.Values{"user_id": {id}})
	if err != nil {
		return nil, err
	}
	posts, err := decodePosts(body)
	if err != nil {
		return nil, err
	}
	if len(posts) > 0 {
		c.cache.Set(key, slices.Clone(posts), c.cfg.PostsTTL)
	}
	return posts, nil
}

func lookup[T any](c *Client, operation, key string) (T, bool) {
	v, ok := cache.Lookup[T](c.cache, key)
	metrics.ObserveCacheLookup(operation, ok)
	return v, ok
}

// get performs one logical request, retrying only upstream 429 responses.
func (c *Client) get(ctx context.Context, operation, path string, query url.Values) ([]byte, error) {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, endpoint); err != nil {
				return nil, err
			}
		}
		status, header, body, err := c.send(ctx, endpoint)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.ObserveProviderRequest(operation, "transport_error")
			return nil, &tracker.UpstreamError{
				Status:  http.StatusBadGateway,
				Message: fmt.Sprintf("%s request failed", operation),
				Err:     err,
			}
		}
		if status == http.StatusTooManyRequests {
			if !c.backoff.ShouldRetry(attempt) {
				metrics.ObserveProviderRequest(operation, "rate_limited")
				return nil, tracker.NewUpstreamError(status, upstreamMessage(body, status))
			}
			wait := c.backoff.Backoff(attempt, retryAfter(header, c.now()))
			metrics.ObserveRateLimitRetry(operation)
			c.logger.Warn("provider rate limited, backing off",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		if status < 200 || status >= 300 {
			metrics.ObserveProviderRequest(operation, "error")
			return nil, tracker.NewUpstreamError(status, upstreamMessage(body, status))
		}
		metrics.ObserveProviderRequest(operation, "ok")
		return body, nil
	}
}

func (c *Client) send(ctx context.Context, endpoint string) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKey)
	}
	if c.cfg.Host != "" {
		req.Header.Set(c.cfg.HostHeader, c.cfg.Host)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close provider response body", zap.Error(cerr))
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// retryAfter parses a Retry-After header given either in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
