package tracker

import (
	"context"
	"io"
	"time"
)

// TrackerStore persists trackers. Implementations enforce uniqueness of
// (OwnerID, Handle) and report violations as ErrConflict.
type TrackerStore interface {
	Ping(ctx context.Context) error
	CreateTracker(ctx context.Context, t Tracker) error
	GetTracker(ctx context.Context, id string) (Tracker, error)
	FindTrackerByHandle(ctx context.Context, ownerID, handle string) (Tracker, error)
	ListTrackers(ctx context.Context) ([]Tracker, error)
	ListTrackersByOwner(ctx context.Context, ownerID string) ([]Tracker, error)
	CountTrackersByOwner(ctx context.Context, ownerID string) (int, error)
	UpdateTargetID(ctx context.Context, id, targetID string) error
	ReplaceBaseline(ctx context.Context, id string, baseline []string) error
	DeleteTracker(ctx context.Context, ownerID, id string) error
}

// UserStore persists user accounts keyed by a unique, lowercased email.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// SocialProvider is the typed surface of the social-data provider.
type SocialProvider interface {
	ResolveID(ctx context.Context, handle string) (string, error)
	Profile(ctx context.Context, handle string) (Profile, error)
	Followings(ctx context.Context, targetID string) ([]Account, error)
	RecentPosts(ctx context.Context, targetID string) ([]Post, error)
}

// Mailer delivers a rendered notification.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Publisher pushes change events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher computes digests for content-addressed paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
