package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/followwatch/internal/hash/sha256"
	pubmemory "github.com/JakeFAU/followwatch/internal/publisher/memory"
	"github.com/JakeFAU/followwatch/internal/snapshot"
	"github.com/JakeFAU/followwatch/internal/storage/memory"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

type fakeProvider struct {
	mu         sync.Mutex
	profiles   map[string]tracker.Profile
	followings map[string][]tracker.Account
	errs       map[string]error
	panicOn    string
}

func (f *fakeProvider) ResolveID(ctx context.Context, handle string) (string, error) {
	p, err := f.Profile(ctx, handle)
	return p.ID, err
}

func (f *fakeProvider) Profile(_ context.Context, handle string) (tracker.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[handle]
	if !ok {
		return tracker.Profile{}, tracker.NewUpstreamError(404, "user not found")
	}
	return p, nil
}

func (f *fakeProvider) Followings(_ context.Context, targetID string) ([]tracker.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if targetID == f.panicOn {
		panic("provider exploded")
	}
	if err := f.errs[targetID]; err != nil {
		return nil, err
	}
	return f.followings[targetID], nil
}

func (f *fakeProvider) RecentPosts(context.Context, string) ([]tracker.Post, error) {
	return nil, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []tracker.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg tracker.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func accounts(handles ...string) []tracker.Account {
	out := make([]tracker.Account, 0, len(handles))
	for _, h := range handles {
		out = append(out, tracker.Account{Handle: h})
	}
	return out
}

func seed(t *testing.T, store *memory.TrackerStore, trackers ...tracker.Tracker) {
	t.Helper()
	for i, tr := range trackers {
		tr.CreatedAt = time.Unix(int64(1700000000+i), 0)
		require.NoError(t, store.CreateTracker(context.Background(), tr))
	}
}

func TestRunCycleNotifiesNewcomersAndReplacesBaseline(t *testing.T) {
	t.Parallel()

	store := memory.NewTrackerStore()
	seed(t, store, tracker.Tracker{
		ID: "t1", OwnerID: "o1", Handle: "alice", TargetID: "42",
		Baseline: []string{"x"}, NotifyAddress: "owner@example.com",
	})
	provider := &fakeProvider{followings: map[string][]tracker.Account{"42": accounts("x", "y", "z")}}
	mailer := &recordingMailer{}
	engine := NewEngine(store, provider, mailer, fixedClock{now: time.Unix(1700001000, 0)}, nil)

	report, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Changed)

	require.Len(t, mailer.sent, 1)
	require.Equal(t, "owner@example.com", mailer.sent[0].To)
	require.Equal(t, "@alice started following: y, z", mailer.sent[0].Text)

	got, err := store.GetTracker(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y", "z"}, got.Baseline)
}

func TestRunCycleNoChangeLeavesBaselineUntouched(t *testing.T) {
	t.Parallel()

	store := memory.NewTrackerStore()
	seed(t, store, tracker.Tracker{
		ID: "t1", OwnerID: "o1", Handle: "alice", TargetID: "42",
		Baseline: []string{"x", "y", "gone"}, NotifyAddress: "owner@example.com",
	})
	before, err := store.GetTracker(context.Background(), "t1")
	require.NoError(t, err)

	provider := &fakeProvider{followings: map[string][]tracker.Account{"42": accounts("y", "x")}}
	mailer := &recordingMailer{}
	engine := NewEngine(store, provider, mailer, fixedClock{now: time.Unix(1700001000, 0)}, nil)

	report, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Unchanged)
	require.Empty(t, mailer.sent)

	after, err := store.GetTracker(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRunCycleBackfillsTargetID(t *testing.T) {
	t.Parallel()

	store := memory.NewTrackerStore()
	seed(t, store,
		tracker.Tracker{ID: "t1", OwnerID: "o1", Handle: "alice", Baseline: []string{"x"}, NotifyAddress: "a@example.com"},
		tracker.Tracker{ID: "t2", OwnerID: "o1", Handle: "ghost", Baseline: []string{"x"}, NotifyAddress: "a@example.com"},
	)
	provider := &fakeProvider{
		profiles:   map[string]tracker.Profile{"alice": {ID: "42", Handle: "alice"}},
		followings: map[string][]tracker.Account{"42": accounts("x")},
	}
	engine := NewEngine(store, provider, &recordingMailer{}, fixedClock{now: time.Unix(1700001000, 0)}, nil)

	report, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, CycleReport{Trackers: 2, Unchanged: 1, Skipped: 1}, report)

	got, err := store.GetTracker(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "42", got.TargetID)

	ghost, err := store.GetTracker(context.Background(), "t2")
	require.NoError(t, err)
	require.Empty(t, ghost.TargetID)
}

func TestRunCycleIsolatesTrackerFailures(t *testing.T) {
	t.Parallel()

	store := memory.NewTrackerStore()
	seed(t, store,
		tracker.Tracker{ID: "t1", OwnerID: "o1", Handle: "boom", TargetID: "1", Baseline: []string{"a"}, NotifyAddress: "a@example.com"},
		tracker.Tracker{ID: "t2", OwnerID: "o1", Handle: "empty", TargetID: "2", Baseline: []string{"a"}, NotifyAddress: "a@example.com"},
		tracker.Tracker{ID: "t3", OwnerID: "o1", Handle: "limited", TargetID: "3", Baseline: []string{"a"}, NotifyAddress: "a@example.com"},
		tracker.Tracker{ID: "t4", OwnerID: "o1", Handle: "fine", TargetID: "4", Baseline: []string{"a"}, NotifyAddress: "a@example.com"},
	)
	provider := &fakeProvider{
		panicOn: "1",
		errs:    map[string]error{"3": tracker.NewUpstreamError(429, "too many requests")},
		followings: map[string][]tracker.Account{
			"2": {},
			"4": accounts("a", "b"),
		},
	}
	core, logs := observer.New(zap.WarnLevel)
	mailer := &recordingMailer{}
	engine := NewEngine(store, provider, mailer, fixedClock{now: time.Unix(1700001000, 0)}, zap.New(core))

	report, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, CycleReport{Trackers: 4, Changed: 1, Skipped: 2, Failed: 1}, report)
	require.Len(t, mailer.sent, 1)

	empty, err := store.GetTracker(context.Background(), "t2")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, empty.Baseline)

	handles := map[string]bool{}
	for _, entry := range logs.All() {
		if h, ok := entry.ContextMap()["handle"].(string); ok {
			handles[h] = true
		}
	}
	require.True(t, handles["boom"])
	require.True(t, handles["empty"])
	require.True(t, handles["limited"])
}

func TestRunCycleMailFailureKeepsBaseline(t *testing.T) {
	t.Parallel()

	store := memory.NewTrackerStore()
	seed(t, store, tracker.Tracker{
		ID: "t1", OwnerID: "o1", Handle: "alice", TargetID: "42",
		Baseline: []string{"x"}, NotifyAddress: "owner@example.com",
	})
	provider := &fakeProvider{followings: map[string][]tracker.Account{"42": accounts("x", "y")}}
	mailer := &recordingMailer{err: errors.New("smtp down")}
	engine := NewEngine(store, provider, mailer, fixedClock{now: time.Unix(1700001000, 0)}, nil)

	report, err := engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)

	got, err := store.GetTracker(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, got.Baseline)
}

func TestRunCycleSkipsWhenStoreUnavailable(t *testing.T) {
	t.Parallel()

	store := memory.NewTrackerStore()
	store.SetUnavailable(true)
	engine := NewEngine(store, &fakeProvider{}, &recordingMailer{}, fixedClock{now: time.Unix(1700001000, 0)}, nil)

	_, err := engine.RunCycle(context.Background())
	require.ErrorIs(t, err, tracker.ErrStoreUnavailable)
}

func TestRunCycleArchivesAndPublishesChanges(t *testing.T) {
	t.Parallel()

	store := memory.NewTrackerStore()
	seed(t, store, tracker.Tracker{
		ID: "t1", OwnerID: "o1", Handle: "alice", TargetID: "42",
		Baseline: []string{"x"}, NotifyAddress: "owner@example.com",
	})
	provider := &fakeProvider{followings: map[string][]tracker.Account{"42": accounts("x", "y")}}
	blobs := memory.NewBlobStore()
	archiver, err := snapshot.NewArchiver(blobs, sha256.New(), "snapshots")
	require.NoError(t, err)
	events := pubmemory.New()

	engine := NewEngine(store, provider, &recordingMailer{}, fixedClock{now: time.Unix(1700001000, 0)}, nil,
		WithArchiver(archiver), WithPublisher(events))

	_, err = engine.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, blobs.Paths(), 1)
	published := events.Events()
	require.Len(t, published, 1)
	require.Equal(t, ChangeEventName, published[0].Name)
	event, ok := published[0].Payload.(tracker.ChangeEvent)
	require.True(t, ok)
	require.Equal(t, []string{"y"}, event.Newcomers)
	require.Equal(t, 2, event.Following)
	require.Contains(t, event.SnapshotURI, "snapshots/t1/1700001000-")
}
