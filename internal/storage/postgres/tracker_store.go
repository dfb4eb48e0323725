package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

const trackerColumns = `id, owner_id, handle, target_id, baseline, notify_address, created_at, updated_at`

// TrackerStore implements tracker.TrackerStore on Postgres.
type TrackerStore struct {
	pool Pool
}

var _ tracker.TrackerStore = (*TrackerStore)(nil)

// NewTrackerStore wraps pool.
func NewTrackerStore(pool Pool) (*TrackerStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &TrackerStore{pool: pool}, nil
}

// Ping reports whether the database is reachable.
func (s *TrackerStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", tracker.ErrStoreUnavailable, err)
	}
	return nil
}

// CreateTracker inserts t. A duplicate (owner, handle) yields tracker.ErrConflict.
func (s *TrackerStore) CreateTracker(ctx context.Context, t tracker.Tracker) error {
	baseline := t.Baseline
	if baseline == nil {
		baseline = []string{}
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO trackers (`+trackerColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID,
		t.OwnerID,
		t.Handle,
		t.TargetID,
		baseline,
		t.NotifyAddress,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return mapError("insert tracker", err)
}

// GetTracker fetches a tracker by id.
func (s *TrackerStore) GetTracker(ctx context.Context, id string) (tracker.Tracker, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+trackerColumns+` FROM trackers WHERE id = $1`, id)
	t, err := scanTracker(row)
	return t, mapError("get tracker", err)
}

// FindTrackerByHandle fetches the owner's tracker for handle, ignoring case.
func (s *TrackerStore) FindTrackerByHandle(ctx context.Context, ownerID, handle string) (tracker.Tracker, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE owner_id = $1 AND lower(handle) = $2`,
		ownerID, strings.ToLower(handle))
	t, err := scanTracker(row)
	return t, mapError("find tracker", err)
}

// ListTrackers returns every tracker in creation order.
func (s *TrackerStore) ListTrackers(ctx context.Context) ([]tracker.Tracker, error) {
	return s.list(ctx, `SELECT `+trackerColumns+` FROM trackers ORDER BY created_at, id`)
}

// ListTrackersByOwner returns the owner's trackers in creation order.
func (s *TrackerStore) ListTrackersByOwner(ctx context.Context, ownerID string) ([]tracker.Tracker, error) {
	return s.list(ctx, `SELECT `+trackerColumns+` FROM trackers WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
}

// CountTrackersByOwner counts the owner's trackers.
func (s *TrackerStore) CountTrackersByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM trackers WHERE owner_id = $1`, ownerID).Scan(&n)
	if err != nil {
		return 0, mapError("count trackers", err)
	}
	return n, nil
}

// UpdateTargetID sets the provider id of a tracker.
func (s *TrackerStore) UpdateTargetID(ctx context.Context, id, targetID string) error {
	return s.update(ctx, "update target id",
		`UPDATE trackers SET target_id = $2, updated_at = now() WHERE id = $1`, id, targetID)
}

// ReplaceBaseline overwrites the stored baseline.
func (s *TrackerStore) ReplaceBaseline(ctx context.Context, id string, baseline []string) error {
	if baseline == nil {
		baseline = []string{}
	}
	return s.update(ctx, "replace baseline",
		`UPDATE trackers SET baseline = $2, updated_at = now() WHERE id = $1`, id, baseline)
}

// DeleteTracker removes the owner's tracker; other owners' trackers are reported as not found.
func (s *TrackerStore) DeleteTracker(ctx context.Context, ownerID, id string) error {
	return s.update(ctx, "delete tracker",
		`DELETE FROM trackers WHERE id = $1 AND owner_id = $2`, id, ownerID)
}

func (s *TrackerStore) update(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, tracker.ErrNotFound)
	}
	return nil
}

func (s *TrackerStore) list(ctx context.Context, query string, args ...any) ([]tracker.Tracker, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list trackers", err)
	}
	defer rows.Close()

	var out []tracker.Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, mapError("scan tracker", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list trackers", err)
	}
	return out, nil
}

func scanTracker(row pgx.Row) (tracker.Tracker, error) {
	var t tracker.Tracker
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Handle,
		&t.TargetID,
		&t.Baseline,
		&t.NotifyAddress,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}
