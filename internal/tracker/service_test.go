package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/followwatch/internal/storage/memory"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

type fakeProvider struct {
	profiles   map[string]tracker.Profile
	followings map[string][]tracker.Account
	profileErr error
	calls      int
}

func (f *fakeProvider) ResolveID(_ context.Context, handle string) (string, error) {
	return f.profiles[handle].ID, nil
}

func (f *fakeProvider) Profile(_ context.Context, handle string) (tracker.Profile, error) {
	f.calls++
	if f.profileErr != nil {
		return tracker.Profile{}, f.profileErr
	}
	p, ok := f.profiles[handle]
	if !ok {
		return tracker.Profile{}, tracker.NewUpstreamError(404, "user not found")
	}
	return p, nil
}

func (f *fakeProvider) Followings(_ context.Context, targetID string) ([]tracker.Account, error) {
	return f.followings[targetID], nil
}

func (f *fakeProvider) RecentPosts(context.Context, string) ([]tracker.Post, error) {
	return nil, nil
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return "tracker-" + string(rune('0'+s.n)), nil
}

func newService(t *testing.T, provider *fakeProvider) (*tracker.Service, *memory.TrackerStore, *memory.UserStore) {
	t.Helper()
	store := memory.NewTrackerStore()
	users := memory.NewUserStore()
	require.NoError(t, users.CreateUser(context.Background(), tracker.User{ID: "owner-1", Email: "owner@example.com"}))
	svc := tracker.NewService(
		store,
		users,
		provider,
		&seqIDs{},
		fakeClock{now: time.Unix(1700000000, 0).UTC()},
		tracker.Limits{MaxPerOwner: 3, MaxFollowing: 100},
		nil,
	)
	return svc, store, users
}

func TestServiceCreateSnapshotsBaseline(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		profiles: map[string]tracker.Profile{
			"alice": {ID: "42", Handle: "alice", FollowingCount: 3},
		},
		followings: map[string][]tracker.Account{
			"42": {{Handle: "x"}, {Handle: "y"}, {Handle: "x"}},
		},
	}
	svc, store, _ := newService(t, provider)

	created, err := svc.Create(context.Background(), tracker.CreateRequest{
		OwnerID:       "owner-1",
		Handle:        " @Alice ",
		NotifyAddress: "Notify@Example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", created.Handle)
	require.Equal(t, "42", created.TargetID)
	require.Equal(t, []string{"x", "y"}, created.Baseline)
	require.Equal(t, "notify@example.com", created.NotifyAddress)

	stored, err := store.GetTracker(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Baseline, stored.Baseline)
}

func TestServiceCreateFallsBackToOwnerEmail(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		profiles:   map[string]tracker.Profile{"alice": {ID: "42", Handle: "alice"}},
		followings: map[string][]tracker.Account{"42": {{Handle: "x"}}},
	}
	svc, _, _ := newService(t, provider)

	created, err := svc.Create(context.Background(), tracker.CreateRequest{OwnerID: "owner-1", Handle: "alice"})
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", created.NotifyAddress)
}

func TestServiceCreateRejectsFollowingCountAboveThreshold(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		profiles: map[string]tracker.Profile{
			"busy": {ID: "7", Handle: "busy", FollowingCount: 150},
		},
	}
	svc, store, _ := newService(t, provider)

	_, err := svc.Create(context.Background(), tracker.CreateRequest{
		OwnerID:       "owner-1",
		Handle:        "busy",
		NotifyAddress: "owner@example.com",
	})
	require.ErrorIs(t, err, tracker.ErrIneligible)

	count, err := store.CountTrackersByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestServiceCreateRejectsPrivateAccount(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		profiles: map[string]tracker.Profile{"hidden": {ID: "9", Handle: "hidden", IsPrivate: true}},
	}
	svc, _, _ := newService(t, provider)

	_, err := svc.Create(context.Background(), tracker.CreateRequest{
		OwnerID:       "owner-1",
		Handle:        "hidden",
		NotifyAddress: "owner@example.com",
	})
	require.ErrorIs(t, err, tracker.ErrIneligible)
	require.Contains(t, err.Error(), "private")
}

func TestServiceCreateRejectsDuplicateHandleAnyCase(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		profiles:   map[string]tracker.Profile{"alice": {ID: "42", Handle: "alice"}},
		followings: map[string][]tracker.Account{"42": {{Handle: "x"}}},
	}
	svc, _, _ := newService(t, provider)
	ctx := context.Background()

	_, err := svc.Create(ctx, tracker.CreateRequest{OwnerID: "owner-1", Handle: "alice", NotifyAddress: "a@example.com"})
	require.NoError(t, err)
	calls := provider.calls

	_, err = svc.Create(ctx, tracker.CreateRequest{OwnerID: "owner-1", Handle: "ALICE", NotifyAddress: "a@example.com"})
	require.ErrorIs(t, err, tracker.ErrConflict)
	require.Equal(t, calls, provider.calls, "duplicate check must happen before any provider call")
}

func TestServiceCreateEnforcesPerOwnerLimit(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		profiles: map[string]tracker.Profile{
			"a": {ID: "1"}, "b": {ID: "2"}, "c": {ID: "3"}, "d": {ID: "4"},
		},
		followings: map[string][]tracker.Account{
			"1": {{Handle: "x"}}, "2": {{Handle: "x"}}, "3": {{Handle: "x"}}, "4": {{Handle: "x"}},
		},
	}
	svc, _, _ := newService(t, provider)
	ctx := context.Background()
	for _, h := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, tracker.CreateRequest{OwnerID: "owner-1", Handle: h, NotifyAddress: "a@example.com"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, tracker.CreateRequest{OwnerID: "owner-1", Handle: "d", NotifyAddress: "a@example.com"})
	require.ErrorIs(t, err, tracker.ErrLimitReached)
}

func TestServiceCreatePropagatesNotFound(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t, &fakeProvider{profiles: map[string]tracker.Profile{}})
	_, err := svc.Create(context.Background(), tracker.CreateRequest{
		OwnerID:       "owner-1",
		Handle:        "ghost",
		NotifyAddress: "a@example.com",
	})
	require.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestServiceCreateValidatesInput(t *testing.T) {
	t.Parallel()

	svc, _, _ := newService(t, &fakeProvider{})
	ctx := context.Background()

	_, err := svc.Create(ctx, tracker.CreateRequest{OwnerID: "owner-1", Handle: "  ", NotifyAddress: "a@example.com"})
	require.ErrorIs(t, err, tracker.ErrInvalidInput)

	_, err = svc.Create(ctx, tracker.CreateRequest{OwnerID: "owner-1", Handle: "alice", NotifyAddress: "not-an-email"})
	require.ErrorIs(t, err, tracker.ErrInvalidInput)

	_, err = svc.Create(ctx, tracker.CreateRequest{Handle: "alice"})
	require.ErrorIs(t, err, tracker.ErrUnauthorized)
}

func TestServiceRemoveIsScopedToOwner(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		profiles:   map[string]tracker.Profile{"alice": {ID: "42"}},
		followings: map[string][]tracker.Account{"42": {{Handle: "x"}}},
	}
	svc, _, _ := newService(t, provider)
	ctx := context.Background()
	created, err := svc.Create(ctx, tracker.CreateRequest{OwnerID: "owner-1", Handle: "alice", NotifyAddress: "a@example.com"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Remove(ctx, "intruder", created.ID), tracker.ErrNotFound)
	require.NoError(t, svc.Remove(ctx, "owner-1", created.ID))

	remaining, err := svc.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
