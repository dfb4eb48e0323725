package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/metrics"
	"github.com/JakeFAU/followwatch/internal/notify"
	"github.com/JakeFAU/followwatch/internal/snapshot"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

// ChangeEventName is the event published when newcomers are detected.
const ChangeEventName = "followings.changed"

// Tracker outcomes reported per cycle.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Archiver stores a snapshot of a detected change.
type Archiver interface {
	Archive(ctx context.Context, s snapshot.Snapshot) (string, error)
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	Trackers  int
	Changed   int
	Unchanged int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithArchiver archives a snapshot of every detected change.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) {
		e.archiver = a
	}
}

// WithPublisher publishes a change event for every detected change.
func WithPublisher(p tracker.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// Engine runs poll cycles.
type Engine struct {
	store     tracker.TrackerStore
	provider  tracker.SocialProvider
	mailer    tracker.Mailer
	clock     tracker.Clock
	archiver  Archiver
	publisher tracker.Publisher
	logger    *zap.Logger
}

// NewEngine builds an Engine.
func NewEngine(
	store tracker.TrackerStore,
	provider tracker.SocialProvider,
	mailer tracker.Mailer,
	clock tracker.Clock,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		provider: provider,
		mailer:   mailer,
		clock:    clock,
		logger:   logger.Named("poller"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle processes every tracker once. It returns an error only when the cycle
// could not start; per-tracker failures are counted in the report.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	start := e.clock.Now()
	var report CycleReport

	if err := e.store.Ping(ctx); err != nil {
		e.logger.Warn("tracker store unreachable; skipping poll cycle", zap.Error(err))
		metrics.ObservePollCycle("skipped", e.clock.Now().Sub(start))
		return report, fmt.Errorf("%w: %w", tracker.ErrStoreUnavailable, err)
	}
	trackers, err := e.store.ListTrackers(ctx)
	if err != nil {
		e.logger.Error("list trackers", zap.Error(err))
		metrics.ObservePollCycle("error", e.clock.Now().Sub(start))
		return report, fmt.Errorf("list trackers: %w", err)
	}

	report.Trackers = len(trackers)
	for _, t := range trackers {
		if ctx.Err() != nil {
			e.logger.Warn("poll cycle interrupted", zap.Error(ctx.Err()))
			break
		}
		outcome := e.processSafely(ctx, t)
		metrics.ObserveTrackerOutcome(outcome)
		switch outcome {
		case OutcomeChanged:
			report.Changed++
		case OutcomeUnchanged:
			report.Unchanged++
		case OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	report.Duration = e.clock.Now().Sub(start)
	metrics.ObservePollCycle("completed", report.Duration)
	e.logger.Info("poll cycle complete",
		zap.Int("trackers", report.Trackers),
		zap.Int("changed", report.Changed),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (e *Engine) processSafely(ctx context.Context, t tracker.Tracker) (outcome string) {
	log := e.logger.With(zap.String("tracker_id", t.ID), zap.String("handle", t.Handle))
	defer func() {
		if r := recover(); r != nil {
			log.Error("tracker processing panicked", zap.Any("panic", r))
			outcome = OutcomeFailed
		}
	}()

	outcome, err := e.process(ctx, t, log)
	switch {
	case err == nil:
	case outcome == OutcomeSkipped:
		log.Warn("tracker skipped this cycle", zap.Error(err))
	default:
		log.Error("tracker processing failed", zap.Error(err))
	}
	return outcome
}

func (e *Engine) process(ctx context.Context, t tracker.Tracker, log *zap.Logger) (string, error) {
	targetID := t.TargetID
	if targetID == "" {
		profile, err := e.provider.Profile(ctx, t.Handle)
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("resolve target id: %w", err)
		}
		if profile.ID == "" {
			return OutcomeSkipped, fmt.Errorf("resolve target id: %w", tracker.ErrTransientEmpty)
		}
		if err := e.store.UpdateTargetID(ctx, t.ID, profile.ID); err != nil {
			return OutcomeFailed, fmt.Errorf("persist target id: %w", err)
		}
		targetID = profile.ID
		log.Info("backfilled target id", zap.String("target_id", targetID))
	}

	accounts, err := e.provider.Followings(ctx, targetID)
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidInput) {
			return OutcomeFailed, fmt.Errorf("fetch followings: %w", err)
		}
		return OutcomeSkipped, fmt.Errorf("fetch followings: %w", err)
	}
	current := tracker.Handles(accounts)
	if len(current) == 0 {
		return OutcomeSkipped, fmt.Errorf("fetch followings: %w", tracker.ErrTransientEmpty)
	}

	newcomers := tracker.Newcomers(t.Baseline, current)
	if len(newcomers) == 0 {
		return OutcomeUnchanged, nil
	}

	msg, err := notify.ChangeMessage(t.NotifyAddress, t.Handle, newcomers)
	if err != nil {
		return OutcomeFailed, err
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		return OutcomeFailed, fmt.Errorf("send notification: %w", err)
	}
	if err := e.store.ReplaceBaseline(ctx, t.ID, current); err != nil {
		return OutcomeFailed, fmt.Errorf("replace baseline: %w", err)
	}
	log.Info("new followings detected", zap.Strings("newcomers", newcomers))

	e.record(ctx, t, current, newcomers, log)
	return OutcomeChanged, nil
}

// record archives and publishes a detected change. Failures are logged only.
func (e *Engine) record(ctx context.Context, t tracker.Tracker, current, newcomers []string, log *zap.Logger) {
	detectedAt := e.clock.Now()
	var uri string
	if e.archiver != nil {
		var err error
		uri, err = e.archiver.Archive(ctx, snapshot.Snapshot{
			TrackerID:  t.ID,
			Handle:     t.Handle,
			Following:  current,
			Newcomers:  newcomers,
			DetectedAt: detectedAt,
		})
		if err != nil {
			log.Warn("archive snapshot failed", zap.Error(err))
		}
	}
	if e.publisher == nil {
		return
	}
	event := tracker.ChangeEvent{
		TrackerID:   t.ID,
		OwnerID:     t.OwnerID,
		Handle:      t.Handle,
		Newcomers:   newcomers,
		Following:   len(current),
		DetectedAt:  detectedAt,
		SnapshotURI: uri,
	}
	if _, err := e.publisher.Publish(ctx, ChangeEventName, event); err != nil {
		log.Warn("publish change event failed", zap.Error(err))
	}
}
