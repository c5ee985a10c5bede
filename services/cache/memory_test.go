package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("blocked", []byte("300"), 5*time.Minute))

	value, err := c.Get("blocked")
	require.NoError(t, err)
	assert.Equal(t, "300", string(value))

	now = now.Add(5 * time.Minute)
	_, err = c.Get("blocked")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheNoExpiry(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.Set("k", []byte("v"), 0))

	value, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(value))

	require.NoError(t, c.Delete("k"))
	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	c := NewMemoryCache()
	value := []byte("abc")
	require.NoError(t, c.Set("k", value, time.Minute))
	value[0] = 'x'

	got, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
