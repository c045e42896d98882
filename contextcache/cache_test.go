package contextcache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcoreio/agentcore/contextcache"
)

func TestCache_SetThenGet(t *testing.T) {
	c := contextcache.New(10, "", nil)
	require.NoError(t, c.Set("k1", "hello", time.Minute))

	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestCache_EvictsLeastRecentlyUsedOnlyFromMemory(t *testing.T) {
	dir := t.TempDir()
	c := contextcache.New(2, dir, nil)

	require.NoError(t, c.Set("a", "1", time.Hour))
	require.NoError(t, c.Set("b", "2", time.Hour))
	// touch "a" so "b" becomes the least-recently-used entry
	_, _ = c.Get("a")
	require.NoError(t, c.Set("c", "3", time.Hour))

	// "b" was evicted from the in-memory layer, but disk still has it, so
	// a Get still succeeds (promoted back into the LRU).
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestCache_ExpiredEntryIsRemovedOpportunistically(t *testing.T) {
	c := contextcache.New(10, "", nil)
	require.NoError(t, c.Set("k", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_PersistsAcrossInstancesViaDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c1 := contextcache.New(10, dir, nil)
	require.NoError(t, c1.Set("k", "persisted", time.Hour))

	c2 := contextcache.New(10, dir, nil)
	v, ok := c2.Get("k")
	require.True(t, ok)
	assert.Equal(t, "persisted", v)
}

func TestCache_GetOrLoad_LoadsOnlyOnceOnMiss(t *testing.T) {
	c := contextcache.New(10, "", nil)
	calls := 0
	load := func() (string, error) {
		calls++
		return "computed", nil
	}

	v1, err := c.GetOrLoad("key", time.Hour, load)
	require.NoError(t, err)
	v2, err := c.GetOrLoad("key", time.Hour, load)
	require.NoError(t, err)

	assert.Equal(t, "computed", v1)
	assert.Equal(t, "computed", v2)
	assert.Equal(t, 1, calls)
}
