// Package snapshot archives following-list snapshots taken when a change is detected.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

// DefaultPrefix is the object prefix used when none is configured.
const DefaultPrefix = "snapshots"

// Snapshot is the archived document.
type Snapshot struct {
	TrackerID  string    `json:"tracker_id"`
	Handle     string    `json:"handle"`
	Following  []string  `json:"following"`
	Newcomers  []string  `json:"newcomers"`
	DetectedAt time.Time `json:"detected_at"`
}

// Archiver writes snapshots to a BlobStore under content-addressed paths.
type Archiver struct {
	blobs  tracker.BlobStore
	hasher tracker.Hasher
	prefix string
}

// NewArchiver builds an Archiver.
func NewArchiver(blobs tracker.BlobStore, hasher tracker.Hasher, prefix string) (*Archiver, error) {
	if blobs == nil || hasher == nil {
		return nil, errors.New("snapshot: blob store and hasher are required")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Archiver{blobs: blobs, hasher: hasher, prefix: prefix}, nil
}

// Archive stores s at <prefix>/<tracker_id>/<unix>-<sha256>.json and returns its URI.
func (a *Archiver) Archive(ctx context.Context, s Snapshot) (string, error) {
	if s.TrackerID == "" {
		return "", tracker.Invalid("snapshot tracker id is required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	sum, err := a.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	key := path.Join(a.prefix, s.TrackerID, fmt.Sprintf("%d-%s.json", s.DetectedAt.Unix(), sum))
	uri, err := a.blobs.PutObject(ctx, key, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return uri, nil
}
