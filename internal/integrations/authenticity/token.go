// internal/integrations/authenticity/token.go
package authenticity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenCache holds one bearer token for a fixed TTL. Concurrent callers that
// find it missing or expired share a single refresh.
type TokenCache struct {
	ttl   time.Duration
	fetch func(ctx context.Context) (string, error)
	now   func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time

	group singleflight.Group
}

func NewTokenCache(ttl time.Duration, fetch func(ctx context.Context) (string, error)) *TokenCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenCache{ttl: ttl, fetch: fetch, now: time.Now}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, true
	}
	return "", false
}

// Get returns a valid token, refreshing it when needed.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}
	v, err, _ := c.group.Do("token", func() (any, error) {
		// someone may have refreshed meanwhile
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		tok, err := c.fetch(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = tok
		c.expires = c.now().Add(c.ttl)
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, e.g. after the API rejected it.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}
