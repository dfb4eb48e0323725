package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHash(t *testing.T) {
	t.Parallel()

	h := New()
	cases := map[string]string{
		"":            "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"hello world": "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
	}
	for in, want := range cases {
		got, err := h.Hash([]byte(in))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	a, _ := h.Hash([]byte(`{"following":["a"]}`))
	b, _ := h.Hash([]byte(`{"following":["b"]}`))
	require.NotEqual(t, a, b)
}
