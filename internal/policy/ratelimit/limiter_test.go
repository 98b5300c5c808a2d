package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_WaitDelaysSecondRequest(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1 means one token every 100ms.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()
	url := "https://www.tfrrs.org/results/xc/1"

	require.NoError(t, l.Wait(ctx, url))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, url))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/x"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com/x"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_ContextCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	url := "https://www.tfrrs.org/"
	require.NoError(t, l.Wait(context.Background(), url))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, url)
	require.Error(t, err)
}

func TestLimiter_UnlimitedWhenRateUnset(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 50 {
		require.NoError(t, l.Wait(ctx, "https://www.tfrrs.org/"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "www.tfrrs.org", hostOf("https://www.tfrrs.org/results"))
	assert.Equal(t, "unknown", hostOf("::bad"))
	assert.Equal(t, "unknown", hostOf(""))
}
