package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

// UserStore keeps user accounts in memory.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]tracker.User
	byEmail map[string]string
}

// NewUserStore constructs an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]tracker.User),
		byEmail: make(map[string]string),
	}
}

// CreateUser stores a user; emails are unique ignoring case.
func (s *UserStore) CreateUser(_ context.Context, u tracker.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return tracker.ErrConflict
	}
	if _, exists := s.byID[u.ID]; exists {
		return tracker.ErrConflict
	}
	u.Email = email
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return nil
}

// GetUser fetches a user by ID.
func (s *UserStore) GetUser(_ context.Context, id string) (tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return tracker.User{}, tracker.ErrNotFound
	}
	return u, nil
}

// GetUserByEmail fetches a user by email, ignoring case.
func (s *UserStore) GetUserByEmail(_ context.Context, email string) (tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return tracker.User{}, tracker.ErrNotFound
	}
	return s.byID[id], nil
}
