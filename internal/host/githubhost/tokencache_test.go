package githubhost

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenCacheReusesLiveToken(t *testing.T) {
	var fetches int64
	cache := NewTokenCache(func(ctx context.Context, id int64) (string, time.Time, error) {
		atomic.AddInt64(&fetches, 1)
		return "tok-1", time.Now().Add(time.Hour), nil
	})

	tok1, errE := cache.Get(context.Background(), 42)
	assert.NoError(t, errE)
	tok2, errE := cache.Get(context.Background(), 42)
	assert.NoError(t, errE)

	assert.Equal(t, "tok-1", tok1)
	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, atomic.LoadInt64(&fetches))
}

func TestTokenCacheRefetchesWithinExpirySlack(t *testing.T) {
	var fetches int64
	cache := NewTokenCache(func(ctx context.Context, id int64) (string, time.Time, error) {
		n := atomic.AddInt64(&fetches, 1)
		if n == 1 {
			return "tok-1", time.Now().Add(time.Minute), nil // within the 5-minute slack
		}
		return "tok-2", time.Now().Add(time.Hour), nil
	})

	tok1, errE := cache.Get(context.Background(), 1)
	assert.NoError(t, errE)
	assert.Equal(t, "tok-1", tok1)

	tok2, errE := cache.Get(context.Background(), 1)
	assert.NoError(t, errE)
	assert.Equal(t, "tok-2", tok2)
	assert.EqualValues(t, 2, atomic.LoadInt64(&fetches))
}

func TestTokenCacheIsolatesInstallations(t *testing.T) {
	cache := NewTokenCache(func(ctx context.Context, id int64) (string, time.Time, error) {
		if id == 1 {
			return "tok-a", time.Now().Add(time.Hour), nil
		}
		return "tok-b", time.Now().Add(time.Hour), nil
	})

	tokA, errE := cache.Get(context.Background(), 1)
	assert.NoError(t, errE)
	tokB, errE := cache.Get(context.Background(), 2)
	assert.NoError(t, errE)

	assert.Equal(t, "tok-a", tokA)
	assert.Equal(t, "tok-b", tokB)
}
