package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/polaris/gateway/internal/domain/gateway"
)

func TestNewCachedRepository_DefaultsTTL(t *testing.T) {
	c := NewCachedRepository(nil, nil, 0)
	require.Equal(t, defaultTTL, c.ttl)

	c = NewCachedRepository(nil, nil, 5*time.Second)
	require.Equal(t, 5*time.Second, c.ttl)
}

func TestCacheKey_StableForSameInputs(t *testing.T) {
	c := NewCachedRepository(nil, nil, time.Minute)
	threadID := uuid.New()
	embedding := []float32{0.1, 0.2, 0.3}

	a := c.cacheKey(embedding, gateway.Namespace("default"), threadID, 0.7, 5)
	b := c.cacheKey(embedding, gateway.Namespace("default"), threadID, 0.7, 5)
	require.Equal(t, a, b)
}

func TestCacheKey_DiffersOnK(t *testing.T) {
	c := NewCachedRepository(nil, nil, time.Minute)
	threadID := uuid.New()
	embedding := []float32{0.1, 0.2, 0.3}

	a := c.cacheKey(embedding, gateway.Namespace("default"), threadID, 0.7, 5)
	b := c.cacheKey(embedding, gateway.Namespace("default"), threadID, 0.7, 10)
	require.NotEqual(t, a, b)
}

func TestCacheKey_DiffersOnThread(t *testing.T) {
	c := NewCachedRepository(nil, nil, time.Minute)
	embedding := []float32{0.1, 0.2, 0.3}

	a := c.cacheKey(embedding, gateway.Namespace("default"), uuid.New(), 0.7, 5)
	b := c.cacheKey(embedding, gateway.Namespace("default"), uuid.New(), 0.7, 5)
	require.NotEqual(t, a, b)
}
