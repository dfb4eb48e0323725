package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsEventsInOrder(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "followings.changed", map[string]string{"handle": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)
	id, err = pub.Publish(context.Background(), "followings.changed", "b")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	events := pub.Events()
	require.Len(t, events, 2)
	require.Equal(t, "b", events[1].Payload)

	events[0].Name = "mutated"
	require.Equal(t, "followings.changed", pub.Events()[0].Name)
}
