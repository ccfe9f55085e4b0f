package shortlink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sutenshah/ultra-events/internal/cache"
)

func TestShortenAndResolve(t *testing.T) {
	svc := New(cache.NewMemory())
	ctx := context.Background()

	id, err := svc.Shorten(ctx, "https://tix.example.com/ticket-form?phone=919876543210&token=abc")
	require.NoError(t, err)
	assert.Len(t, id, 8)

	target, found, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://tix.example.com/ticket-form?phone=919876543210&token=abc", target)
}

func TestResolveUnknownID(t *testing.T) {
	svc := New(cache.NewMemory())

	_, found, err := svc.Resolve(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestShortenProducesDistinctIDs(t *testing.T) {
	svc := New(cache.NewMemory())
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := svc.Shorten(ctx, "https://example.com/a")
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
