// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

// TrackerStore keeps trackers in a map guarded by a RWMutex.
type TrackerStore struct {
	mu       sync.RWMutex
	trackers map[string]tracker.Tracker
	clock    tracker.Clock
	down     bool
}

// TrackerStoreOption customizes a TrackerStore.
type TrackerStoreOption func(*TrackerStore)

// WithClock sets the clock used to stamp UpdatedAt.
func WithClock(c tracker.Clock) TrackerStoreOption {
	return func(s *TrackerStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewTrackerStore constructs an empty TrackerStore.
func NewTrackerStore(opts ...TrackerStoreOption) *TrackerStore {
	s := &TrackerStore{
		trackers: make(map[string]tracker.Tracker),
		clock:    utcClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// SetUnavailable makes Ping fail, simulating a lost database connection.
func (s *TrackerStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Ping reports whether the store is reachable.
func (s *TrackerStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.down {
		return tracker.ErrStoreUnavailable
	}
	return nil
}

// CreateTracker inserts a tracker, enforcing case-insensitive (owner, handle) uniqueness.
func (s *TrackerStore) CreateTracker(_ context.Context, t tracker.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trackers[t.ID]; exists {
		return tracker.ErrConflict
	}
	for _, existing := range s.trackers {
		if existing.OwnerID == t.OwnerID && strings.EqualFold(existing.Handle, t.Handle) {
			return tracker.ErrConflict
		}
	}
	s.trackers[t.ID] = clone(t)
	return nil
}

// GetTracker fetches a tracker by ID.
func (s *TrackerStore) GetTracker(_ context.Context, id string) (tracker.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trackers[id]
	if !ok {
		return tracker.Tracker{}, tracker.ErrNotFound
	}
	return clone(t), nil
}

// FindTrackerByHandle looks up an owner's tracker by handle, ignoring case.
func (s *TrackerStore) FindTrackerByHandle(_ context.Context, ownerID, handle string) (tracker.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.trackers {
		if t.OwnerID == ownerID && strings.EqualFold(t.Handle, handle) {
			return clone(t), nil
		}
	}
	return tracker.Tracker{}, tracker.ErrNotFound
}

// ListTrackers returns every tracker ordered by creation time.
func (s *TrackerStore) ListTrackers(_ context.Context) ([]tracker.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(tracker.Tracker) bool { return true }), nil
}

// ListTrackersByOwner returns an owner's trackers ordered by creation time.
func (s *TrackerStore) ListTrackersByOwner(_ context.Context, ownerID string) ([]tracker.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(t tracker.Tracker) bool { return t.OwnerID == ownerID }), nil
}

// CountTrackersByOwner counts an owner's trackers.
func (s *TrackerStore) CountTrackersByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.trackers {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// UpdateTargetID backfills the provider identifier of a tracker.
func (s *TrackerStore) UpdateTargetID(_ context.Context, id, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[id]
	if !ok {
		return tracker.ErrNotFound
	}
	t.TargetID = targetID
	t.UpdatedAt = s.clock.Now().UTC()
	s.trackers[id] = t
	return nil
}

// ReplaceBaseline swaps the stored baseline wholesale.
func (s *TrackerStore) ReplaceBaseline(_ context.Context, id string, baseline []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[id]
	if !ok {
		return tracker.ErrNotFound
	}
	t.Baseline = slices.Clone(baseline)
	t.UpdatedAt = s.clock.Now().UTC()
	s.trackers[id] = t
	return nil
}

// DeleteTracker removes a tracker if it belongs to ownerID.
func (s *TrackerStore) DeleteTracker(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[id]
	if !ok || t.OwnerID != ownerID {
		return tracker.ErrNotFound
	}
	delete(s.trackers, id)
	return nil
}

func (s *TrackerStore) collect(keep func(tracker.Tracker) bool) []tracker.Tracker {
	out := make([]tracker.Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		if keep(t) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func clone(t tracker.Tracker) tracker.Tracker {
	t.Baseline = slices.Clone(t.Baseline)
	return t
}
