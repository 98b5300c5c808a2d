package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "meets/1001/abc.html", "text/html", bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	assert.Equal(t, "memory://meets/1001/abc.html", uri)

	got, ok := store.Object("meets/1001/abc.html")
	require.True(t, ok)
	assert.Equal(t, "content", string(got))

	got[0] = 'C'
	again, _ := store.Object("meets/1001/abc.html")
	assert.Equal(t, "content", string(again), "returned slices must not alias stored data")
	assert.Equal(t, 1, store.Len())

	_, ok = store.Object("missing")
	assert.False(t, ok)
}
