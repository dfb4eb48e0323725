// Package mediacheck scans an account's recent posts for images matching the classifier's subject.
package mediacheck

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/provider"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

// Matcher returns the subset of image URLs that match.
type Matcher interface {
	Run(ctx context.Context, urls []string) []string
}

// Result is the outcome of one media check.
type Result struct {
	Handle  string   `json:"handle"`
	Scanned int      `json:"scanned"`
	Images  []string `json:"images"`
	Message string   `json:"message,omitempty"`
}

// Service runs media checks.
type Service struct {
	provider tracker.SocialProvider
	matcher  Matcher
	logger   *zap.Logger
}

// NewService builds a Service.
func NewService(p tracker.SocialProvider, m Matcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: p, matcher: m, logger: logger.Named("mediacheck")}
}

// Check fetches the account's recent posts and classifies every still image in them.
// An account without posts is reported as tracker.ErrNotFound.
func (s *Service) Check(ctx context.Context, handle string) (Result, error) {
	h, err := tracker.NormalizeHandle(handle)
	if err != nil {
		return Result{}, err
	}
	profile, err := s.provider.Profile(ctx, h)
	if err != nil {
		return Result{}, err
	}
	targetID := profile.ID
	if targetID == "" {
		if targetID, err = s.provider.ResolveID(ctx, h); err != nil {
			return Result{}, err
		}
	}
	posts, err := s.provider.RecentPosts(ctx, targetID)
	if err != nil {
		return Result{}, err
	}
	if len(posts) == 0 {
		return Result{}, fmt.Errorf("%w: no posts found for @%s", tracker.ErrNotFound, h)
	}

	urls := distinct(provider.ImageURLs(posts))
	matches := s.matcher.Run(ctx, urls)
	if matches == nil {
		matches = []string{}
	}
	res := Result{Handle: h, Scanned: len(urls), Images: matches}
	if len(matches) == 0 {
		res.Message = "no matching images found"
	}
	s.logger.Info("media check complete",
		zap.String("handle", h),
		zap.Int("posts", len(posts)),
		zap.Int("scanned", len(urls)),
		zap.Int("matched", len(matches)))
	return res, nil
}

// distinct drops repeated URLs, keeping first-seen order.
func distinct(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
