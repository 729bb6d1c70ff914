package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	_, ok := cache.Get(ctx, "projection:abc")
	assert.False(t, ok)

	assert.NoError(t, cache.Set(ctx, "projection:abc", `{"annualRevenueLost":80000}`))
	val, ok := cache.Get(ctx, "projection:abc")
	assert.True(t, ok)
	assert.Equal(t, `{"annualRevenueLost":80000}`, val)
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = cache.Set(ctx, key, "v")
			cache.Get(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, cache.Len())
}

func TestRedisCache_UnreachableServerIsAMiss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Nothing listens on port 1.
	cache := NewRedisCache("127.0.0.1:1", time.Minute)
	defer cache.Close()

	assert.Error(t, cache.Ping(ctx))
	_, ok := cache.Get(ctx, "projection:abc")
	assert.False(t, ok)
	assert.Error(t, cache.Set(ctx, "projection:abc", "{}"))
}
