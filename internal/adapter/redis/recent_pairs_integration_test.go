package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentPairs_KeepsNewestWithinCapacity(t *testing.T) {
	client := setupTestClient(t)
	recent := NewRecentPairs(client, 4)
	ctx := context.Background()

	ids, err := recent.Recent(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, recent.Push(ctx, "a", "b"))
	require.NoError(t, recent.Push(ctx, "c", "d"))
	require.NoError(t, recent.Push(ctx, "e", "f"))

	ids, err = recent.Recent(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e", "f"}, ids)
}

func TestRecentPairs_SharedAcrossInstances(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, NewRecentPairs(client, 10).Push(ctx, "x", "y"))

	ids, err := NewRecentPairs(client, 10).Recent(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids)
}

func TestRecentPairs_EmptyPushIsNoop(t *testing.T) {
	client := setupTestClient(t)
	recent := NewRecentPairs(client, 0)

	require.NoError(t, recent.Push(context.Background()))
	assert.Equal(t, 10, recent.capacity)
}
