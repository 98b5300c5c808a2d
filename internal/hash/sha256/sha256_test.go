package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestHasherFullDigest(t *testing.T) {
	t.Parallel()

	for _, length := range []int{0, -1, 64, 100} {
		got, err := New(length).Hash([]byte("hello world"))
		require.NoError(t, err)
		assert.Equal(t, helloDigest, got, "length %d", length)
	}
}

func TestHasherTruncated(t *testing.T) {
	t.Parallel()

	h := New(16)
	got, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, helloDigest[:16], got)

	other, err := h.Hash([]byte("<html>meet 1002</html>"))
	require.NoError(t, err)
	assert.NotEqual(t, got, other)
}
