package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_ClaimOnce(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	store := NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "submit:m1:u1:abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "submit:m1:u1:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "submit:m1:u1:abc"))

	ok, err = store.Claim(ctx, "submit:m1:u1:abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyStore_Expires(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	store := NewIdempotencyStore(client, 500*time.Millisecond)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(700 * time.Millisecond)

	ok, err = store.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
