package githubhost

import (
	"context"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// tokenExpirySlack is subtracted from the service-reported expiry so a
// token is never handed out within this margin of actually expiring
// (spec.md §5, §9).
const tokenExpirySlack = 5 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenFetcher requests a fresh installation token from GitHub.
type TokenFetcher func(ctx context.Context, installationID int64) (string, time.Time, error)

// TokenCache is a process-wide, read-preferring TTL cache of GitHub App
// installation tokens, keyed by installation id. Acquisition takes the
// read lock, checks for a live entry, and only on a miss upgrades to the
// write lock and rechecks before fetching — the double-checked
// acquisition pattern spec.md §5/§9 calls for.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[int64]cachedToken
	fetch  TokenFetcher
}

// NewTokenCache returns an empty cache that fetches misses via fetch.
func NewTokenCache(fetch TokenFetcher) *TokenCache {
	return &TokenCache{tokens: map[int64]cachedToken{}, fetch: fetch}
}

// Get returns a live token for installationID, fetching and caching a new
// one if the cached entry is missing or within tokenExpirySlack of expiry.
func (c *TokenCache) Get(ctx context.Context, installationID int64) (string, errors.E) {
	c.mu.RLock()
	entry, ok := c.tokens[installationID]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt.Add(-tokenExpirySlack)) {
		return entry.token, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok = c.tokens[installationID]
	if ok && time.Now().Before(entry.expiresAt.Add(-tokenExpirySlack)) {
		return entry.token, nil
	}

	token, expiresAt, err := c.fetch(ctx, installationID)
	if err != nil {
		return "", errors.Wrapf(err, "cannot fetch installation token for installation %d", installationID)
	}
	c.tokens[installationID] = cachedToken{token: token, expiresAt: expiresAt}
	return token, nil
}
