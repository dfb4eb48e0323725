package snapshot

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/followwatch/internal/hash/sha256"
	"github.com/JakeFAU/followwatch/internal/storage/memory"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

func TestArchiveWritesContentAddressedJSON(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	a, err := NewArchiver(blobs, sha256.New(), "/archive/")
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()
	uri, err := a.Archive(context.Background(), Snapshot{
		TrackerID:  "t1",
		Handle:     "alice",
		Following:  []string{"x", "y"},
		Newcomers:  []string{"y"},
		DetectedAt: at,
	})
	require.NoError(t, err)

	paths := blobs.Paths()
	require.Len(t, paths, 1)
	require.True(t, strings.HasPrefix(paths[0], "archive/t1/1700000000-"))
	require.True(t, strings.HasSuffix(paths[0], ".json"))
	require.Contains(t, uri, paths[0])

	raw, ok := blobs.Object(paths[0])
	require.True(t, ok)
	var got Snapshot
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, []string{"y"}, got.Newcomers)
	require.True(t, at.Equal(got.DetectedAt))
}

func TestArchiveValidates(t *testing.T) {
	t.Parallel()

	_, err := NewArchiver(nil, sha256.New(), "")
	require.Error(t, err)

	a, err := NewArchiver(memory.NewBlobStore(), sha256.New(), "")
	require.NoError(t, err)
	_, err = a.Archive(context.Background(), Snapshot{})
	require.ErrorIs(t, err, tracker.ErrInvalidInput)
}
