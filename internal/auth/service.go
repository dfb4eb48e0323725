package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

const (
	// DefaultBcryptCost is the hashing cost for new passwords.
	DefaultBcryptCost = 12
	minPasswordLength = 8
)

// UserView is the public part of a user returned to clients.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is returned by Signup and Login.
type Session struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

// Service implements signup, login and token authentication.
type Service struct {
	users  tracker.UserStore
	tokens *Tokens
	ids    tracker.IDGenerator
	clock  tracker.Clock
	cost   int
	logger *zap.Logger
}

// NewService builds a Service. A cost outside bcrypt's range selects DefaultBcryptCost.
func NewService(users tracker.UserStore, tokens *Tokens, ids tracker.IDGenerator, clock tracker.Clock, cost int, logger *zap.Logger) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		ids:    ids,
		clock:  clock,
		cost:   cost,
		logger: logger.Named("auth"),
	}
}

// Signup registers a new user and returns a session for it.
func (s *Service) Signup(ctx context.Context, email, password string) (Session, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLength {
		return Session{}, tracker.Invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if _, err := s.users.GetUserByEmail(ctx, addr); err == nil {
		return Session{}, fmt.Errorf("%w: email already registered", tracker.ErrConflict)
	} else if !errors.Is(err, tracker.ErrNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return Session{}, fmt.Errorf("generate user id: %w", err)
	}
	u := tracker.User{ID: id, Email: addr, PasswordHash: string(hash), CreatedAt: s.clock.Now()}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return Session{}, err
	}
	s.logger.Info("user signed up", zap.String("user_id", id))
	return s.session(u)
}

// Login checks credentials and returns a session. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	addr, err := normalizeEmail(email)
	if err != nil || password == "" {
		return Session{}, tracker.ErrUnauthorized
	}
	u, err := s.users.GetUserByEmail(ctx, addr)
	if errors.Is(err, tracker.ErrNotFound) {
		return Session{}, tracker.ErrUnauthorized
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, tracker.ErrUnauthorized
	}
	return s.session(u)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (tracker.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return tracker.User{}, err
	}
	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, tracker.ErrNotFound) {
		return tracker.User{}, tracker.ErrUnauthorized
	}
	return u, err
}

func (s *Service) session(u tracker.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: UserView{ID: u.ID, Email: u.Email}}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", tracker.Invalid("a valid email is required")
	}
	return strings.ToLower(addr.Address), nil
}
