package tracker

import "time"

// Tracker is one user's subscription to the following list of one external account.
type Tracker struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Handle        string    `json:"handle"`
	TargetID      string    `json:"target_id,omitempty"`
	Baseline      []string  `json:"baseline"`
	NotifyAddress string    `json:"notify_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is an account allowed to own trackers.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the canonical view of a provider account profile.
type Profile struct {
	ID             string `json:"id"`
	Handle         string `json:"handle"`
	FullName       string `json:"full_name,omitempty"`
	IsPrivate      bool   `json:"is_private"`
	FollowingCount int    `json:"following_count"`
	FollowerCount  int    `json:"follower_count"`
}

// Account is one entry of a following list.
type Account struct {
	ID     string `json:"id,omitempty"`
	Handle string `json:"handle"`
}

// MediaKind mirrors the provider's media_type codes.
type MediaKind int

// Known media kinds. MediaUnknown is reported when the provider omits the type.
const (
	MediaUnknown  MediaKind = 0
	MediaPhoto    MediaKind = 1
	MediaVideo    MediaKind = 2
	MediaCarousel MediaKind = 8
)

// ImageCandidate is one resolution variant of an image.
type ImageCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Area returns the pixel area of the candidate.
func (c ImageCandidate) Area() int {
	return c.Width * c.Height
}

// Post is a recent media item of an account. Carousel posts carry their frames in Children.
type Post struct {
	ID         string           `json:"id"`
	Kind       MediaKind        `json:"kind"`
	Candidates []ImageCandidate `json:"candidates,omitempty"`
	Children   []Post           `json:"children,omitempty"`
}

// Message is a rendered notification ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// ChangeEvent is published when a tracker observes new followings.
type ChangeEvent struct {
	TrackerID   string    `json:"tracker_id"`
	OwnerID     string    `json:"owner_id"`
	Handle      string    `json:"handle"`
	Newcomers   []string  `json:"newcomers"`
	Following   int       `json:"following"`
	DetectedAt  time.Time `json:"detected_at"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
}
