// Package auth issues and verifies session tokens and owns the signup/login flow.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

const (
	tokenIssuer = "followwatch"
	// DefaultTokenTTL is the session lifetime used when none is configured.
	DefaultTokenTTL = 7 * 24 * time.Hour
	minSecretLength = 16
)

// Tokens signs and verifies HS256 session tokens whose subject is the user id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  tracker.Clock
}

// NewTokens builds a Tokens.
func NewTokens(secret string, ttl time.Duration, clock tracker.Clock) (*Tokens, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// Issue returns a signed token for userID.
func (t *Tokens) Issue(userID string) (string, error) {
	now := t.clock.Now()
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(t.ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature, issuer and lifetime of raw and returns its subject.
// Every failure is reported as tracker.ErrUnauthorized.
func (t *Tokens) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", tracker.ErrUnauthorized
	}
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, t.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(t.clock.Now)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", tracker.ErrUnauthorized, err)
	}
	if tok.Subject() == "" {
		return "", fmt.Errorf("%w: token has no subject", tracker.ErrUnauthorized)
	}
	return tok.Subject(), nil
}
