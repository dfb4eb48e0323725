package provider

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

func TestDecodeProfileShapes(t *testing.T) {
	t.Parallel()

	bodies := map[string]string{
		"top level":   `{"pk":"9","username":"zed","following_count":"12","is_private":true}`,
		"user":        `{"user":{"pk":9,"username":"zed","following_count":12,"is_private":true}}`,
		"data.user":   `{"data":{"user":{"id":"9","username":"zed","edge_follow":{"count":12},"is_private":true}}}`,
		"data direct": `{"data":{"pk_id":"9","username":"zed","following_count":12,"is_private":true},"status":"ok"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p, err := decodeProfile([]byte(body))
			require.NoError(t, err)
			require.Equal(t, "9", p.ID)
			require.Equal(t, "zed", p.Handle)
			require.Equal(t, 12, p.FollowingCount)
			require.True(t, p.IsPrivate)
		})
	}
}

func TestDecodeUserIDLargeNumber(t *testing.T) {
	t.Parallel()

	id, err := decodeUserID([]byte(`{"user_id":58723498123456789}`))
	require.NoError(t, err)
	require.Equal(t, "58723498123456789", id)

	_, err = decodeUserID([]byte(`{"status":"fail","message":"user not found"}`))
	require.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestDecodeFollowingsShapes(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"users":[{"pk":1,"username":"a"},{"pk":2,"username":"b"}]}`,
		`{"data":{"users":[{"pk":1,"username":"a"},{"pk":2,"username":"b"}]}}`,
		`[{"pk":"1","username":"a"},{"pk":"2","username":"b"},{"pk":"3","username":"  "}]`,
	}
	for _, body := range bodies {
		got, err := decodeFollowings([]byte(body))
		require.NoError(t, err)
		require.Equal(t, []tracker.Account{{ID: "1", Handle: "a"}, {ID: "2", Handle: "b"}}, got)
	}

	_, err := decodeFollowings([]byte(`"nope"`))
	var ue *tracker.UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, http.StatusBadGateway, ue.Status)
}

func TestDecodePosts(t *testing.T) {
	t.Parallel()

	body := `{"items":[
		{"id":"p1","media_type":1,"image_versions2":{"candidates":[{"url":"u1","width":100,"height":100}]}},
		{"id":"p2","media_type":8,"carousel_media":[
			{"media_type":1,"image_versions2":{"candidates":[{"url":"c1","width":10,"height":10}]}},
			{"media_type":2,"image_versions2":{"candidates":[{"url":"v1","width":10,"height":10}]}}
		]},
		{"pk":3,"image_versions2":{"candidates":[{"url":"u3","width":5,"height":5}]}}
	]}`
	posts, err := decodePosts([]byte(body))
	require.NoError(t, err)
	require.Len(t, posts, 3)
	require.Equal(t, tracker.MediaPhoto, posts[0].Kind)
	require.Equal(t, tracker.MediaCarousel, posts[1].Kind)
	require.Len(t, posts[1].Children, 2)
	require.Equal(t, tracker.MediaUnknown, posts[2].Kind)
	require.Equal(t, "3", posts[2].ID)

	require.Equal(t, []string{"u1", "c1", "u3"}, ImageURLs(posts))
}

func TestSelectLargest(t *testing.T) {
	t.Parallel()

	best, ok := SelectLargest([]tracker.ImageCandidate{
		{URL: "a", Width: 100, Height: 100},
		{URL: "b", Width: 300, Height: 200},
		{URL: "c", Width: 150, Height: 150},
	})
	require.True(t, ok)
	require.Equal(t, "b", best.URL)
	require.Equal(t, 60000, best.Area())

	best, ok = SelectLargest([]tracker.ImageCandidate{
		{URL: "first", Width: 10, Height: 20},
		{URL: "second", Width: 20, Height: 10},
	})
	require.True(t, ok)
	require.Equal(t, "first", best.URL)

	_, ok = SelectLargest(nil)
	require.False(t, ok)
}

func TestUpstreamMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "quota", upstreamMessage([]byte(`{"message":"quota"}`), 403))
	require.Equal(t, "boom", upstreamMessage([]byte(`{"error":"boom"}`), 500))
	require.Equal(t, "plain text", upstreamMessage([]byte("plain text"), 500))
	require.Equal(t, "Bad Gateway", upstreamMessage(nil, 502))
}
