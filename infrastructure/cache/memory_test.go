package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "student:s1:summary", []byte(`{"rate":0.9}`), time.Minute))

	value, found, err := store.Get(ctx, "student:s1:summary")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"rate":0.9}`), value)

	exists, err := store.Exists(ctx, "student:s1:summary")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStoreExpiryOnRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), -time.Second))

	// Expired before the janitor runs; reads must not see it.
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("abc"), time.Minute))

	value, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	value[0] = 'z'

	again, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreDeletePatternScopesToNamespace(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "student:s1:summary", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "student:s1:history", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "student:s2:summary", []byte("c"), time.Minute))
	require.NoError(t, store.Set(ctx, "class:c1:students", []byte("d"), time.Minute))

	deleted, err := store.DeletePattern(ctx, "student:s1:*")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Sibling and other-namespace keys survive.
	_, found, _ := store.Get(ctx, "student:s2:summary")
	assert.True(t, found)
	_, found, _ = store.Get(ctx, "class:c1:students")
	assert.True(t, found)
}

func TestMemoryStoreDeletePatternNoMatchIsZero(t *testing.T) {
	store := NewMemoryStore()

	deleted, err := store.DeletePattern(context.Background(), "student:missing:*")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, 0, store.Len())
}

func TestGlobToRegexpEscapesMetaChars(t *testing.T) {
	re, err := globToRegexp("student:s.1:*")
	require.NoError(t, err)

	assert.True(t, re.MatchString("student:s.1:summary"))
	// The dot is literal, not a regexp wildcard.
	assert.False(t, re.MatchString("student:sX1:summary"))
}
