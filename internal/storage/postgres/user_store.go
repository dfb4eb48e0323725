package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

// UserStore implements tracker.UserStore on Postgres.
type UserStore struct {
	pool Pool
}

var _ tracker.UserStore = (*UserStore)(nil)

// NewUserStore wraps pool.
func NewUserStore(pool Pool) (*UserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &UserStore{pool: pool}, nil
}

// CreateUser inserts u with a lowercased email. A taken email yields tracker.ErrConflict.
func (s *UserStore) CreateUser(ctx context.Context, u tracker.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1,$2,$3,$4)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.CreatedAt)
	return mapError("insert user", err)
}

// GetUser fetches a user by id.
func (s *UserStore) GetUser(ctx context.Context, id string) (tracker.User, error) {
	var u tracker.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, mapError("get user", err)
}

// GetUserByEmail fetches a user by email, ignoring case.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (tracker.User, error) {
	var u tracker.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, mapError("get user by email", err)
}
