package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Limits bounds tracker creation.
type Limits struct {
	MaxPerOwner  int
	MaxFollowing int
}

// Service implements the tracker lifecycle exposed to users: create, list and remove.
type Service struct {
	store    TrackerStore
	users    UserStore
	provider SocialProvider
	ids      IDGenerator
	clock    Clock
	limits   Limits
	logger   *zap.Logger
}

// NewService constructs a Service. users may be nil, in which case a notify address is mandatory.
func NewService(
	store TrackerStore,
	users UserStore,
	provider SocialProvider,
	ids IDGenerator,
	clock Clock,
	limits Limits,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		users:    users,
		provider: provider,
		ids:      ids,
		clock:    clock,
		limits:   limits,
		logger:   logger,
	}
}

// CreateRequest carries the user-supplied fields of a new tracker.
type CreateRequest struct {
	OwnerID       string
	Handle        string
	NotifyAddress string
}

// Create validates eligibility, snapshots the current following list as the baseline and
// persists a new tracker. No record is written when any check fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Tracker, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return Tracker{}, ErrUnauthorized
	}
	handle, err := NormalizeHandle(req.Handle)
	if err != nil {
		return Tracker{}, err
	}
	address, err := s.notifyAddress(ctx, req)
	if err != nil {
		return Tracker{}, err
	}

	count, err := s.store.CountTrackersByOwner(ctx, req.OwnerID)
	if err != nil {
		return Tracker{}, fmt.Errorf("count trackers: %w", err)
	}
	if s.limits.MaxPerOwner > 0 && count >= s.limits.MaxPerOwner {
		return Tracker{}, ErrLimitReached
	}
	if _, err := s.store.FindTrackerByHandle(ctx, req.OwnerID, handle); err == nil {
		return Tracker{}, fmt.Errorf("%w: already tracking @%s", ErrConflict, handle)
	} else if !errors.Is(err, ErrNotFound) {
		return Tracker{}, fmt.Errorf("find tracker: %w", err)
	}

	profile, err := s.provider.Profile(ctx, handle)
	if err != nil {
		return Tracker{}, fmt.Errorf("fetch profile: %w", err)
	}
	if profile.IsPrivate {
		return Tracker{}, Ineligible("account is private")
	}
	if s.limits.MaxFollowing > 0 && profile.FollowingCount > s.limits.MaxFollowing {
		return Tracker{}, Ineligible(fmt.Sprintf("account follows more than %d users", s.limits.MaxFollowing))
	}
	if profile.ID == "" {
		return Tracker{}, &UpstreamError{Status: http.StatusBadGateway, Message: "profile missing user id"}
	}

	followings, err := s.provider.Followings(ctx, profile.ID)
	if err != nil {
		return Tracker{}, fmt.Errorf("fetch followings: %w", err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Tracker{}, fmt.Errorf("generate tracker id: %w", err)
	}
	now := s.clock.Now()
	t := Tracker{
		ID:            id,
		OwnerID:       req.OwnerID,
		Handle:        handle,
		TargetID:      profile.ID,
		Baseline:      Handles(followings),
		NotifyAddress: address,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateTracker(ctx, t); err != nil {
		return Tracker{}, fmt.Errorf("create tracker: %w", err)
	}
	s.logger.Info("tracker created",
		zap.String("tracker_id", t.ID),
		zap.String("owner_id", t.OwnerID),
		zap.String("handle", t.Handle),
		zap.Int("baseline", len(t.Baseline)),
	)
	return t, nil
}

// List returns the trackers owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID string) ([]Tracker, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthorized
	}
	trackers, err := s.store.ListTrackersByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	return trackers, nil
}

// Remove deletes a tracker owned by ownerID.
func (s *Service) Remove(ctx context.Context, ownerID, id string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return Invalid("tracker id is required")
	}
	if err := s.store.DeleteTracker(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	s.logger.Info("tracker removed", zap.String("tracker_id", id), zap.String("owner_id", ownerID))
	return nil
}

func (s *Service) notifyAddress(ctx context.Context, req CreateRequest) (string, error) {
	raw := strings.TrimSpace(req.NotifyAddress)
	if raw == "" {
		if s.users == nil {
			return "", Invalid("email is required")
		}
		owner, err := s.users.GetUser(ctx, req.OwnerID)
		if err != nil {
			return "", fmt.Errorf("load owner: %w", err)
		}
		raw = owner.Email
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", Invalid("email is not a valid address")
	}
	return strings.ToLower(addr.Address), nil
}
