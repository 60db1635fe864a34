// Package cache provides a time-bounded cache of authorization-server
// metadata and signing keys, keyed by server address. It shields validation
// runs from repeated network round-trips and guarantees a single in-flight
// fetch per address.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	oidckit "github.com/open-rails/bearerkit/oidc"
)

// Source produces provider metadata for an address. *oidckit.Retriever
// satisfies it.
type Source interface {
	Fetch(ctx context.Context, address string) (*oidckit.ProviderMetadata, error)
}

type entry struct {
	md        *oidckit.ProviderMetadata
	fetchedAt time.Time
}

// Cache caches provider metadata per address. Entries are replaced wholesale,
// never mutated, so a reader holding a metadata value keeps a consistent
// metadata/key pairing even across a refresh. The mutex guards only the map;
// it is never held across network I/O.
type Cache struct {
	source     Source
	ttl        time.Duration
	serveStale bool
	logger     logrus.FieldLogger

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// Opt configures a Cache.
type Opt func(*Cache)

// WithTTL sets the freshness window for cached entries. Defaults to 15m.
func WithTTL(ttl time.Duration) Opt {
	return func(c *Cache) { c.ttl = ttl }
}

// WithServeStale opts in to serving an expired entry when a refresh fetch
// fails. The default surfaces the failure to the caller instead.
func WithServeStale(serve bool) Opt {
	return func(c *Cache) { c.serveStale = serve }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Opt {
	return func(c *Cache) { c.logger = l }
}

// New builds a cache over the given source.
func New(source Source, opts ...Opt) *Cache {
	c := &Cache{
		source:  source,
		ttl:     15 * time.Minute,
		logger:  logrus.StandardLogger(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached metadata for address if it is within its
// freshness window, fetching it otherwise. Concurrent callers for the same
// address share a single fetch. Cancelling ctx abandons the wait without
// cancelling the shared fetch other callers may still be waiting on.
func (c *Cache) GetOrFetch(ctx context.Context, address string) (*oidckit.ProviderMetadata, error) {
	if md, ok := c.fresh(address); ok {
		return md, nil
	}
	return c.fetch(ctx, address)
}

// Refresh fetches address unconditionally, replacing any cached entry.
// Used for key-rotation tolerance: an unknown key id forces one refresh.
func (c *Cache) Refresh(ctx context.Context, address string) (*oidckit.ProviderMetadata, error) {
	return c.fetch(ctx, address)
}

// fresh returns the entry for address if present and unexpired.
func (c *Cache) fresh(address string) (*oidckit.ProviderMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[address]
	if !ok || time.Since(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.md, true
}

// stale returns whatever entry exists for address, expired or not.
func (c *Cache) stale(address string) (*oidckit.ProviderMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[address]
	return e.md, ok
}

func (c *Cache) fetch(ctx context.Context, address string) (*oidckit.ProviderMetadata, error) {
	ch := c.group.DoChan(address, func() (any, error) {
		// Detached from any single caller: the flight completes for
		// everyone even if the originating request goes away.
		md, err := c.source.Fetch(context.WithoutCancel(ctx), address)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[address] = entry{md: md, fetchedAt: time.Now()}
		c.mu.Unlock()
		return md, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if md, ok := c.stale(address); ok && c.serveStale {
				c.logger.WithField("address", address).
					WithError(res.Err).Warn("fetch failed, serving stale metadata")
				return md, nil
			}
			return nil, res.Err
		}
		return res.Val.(*oidckit.ProviderMetadata), nil
	}
}

// Evict drops the entry for address, if any.
func (c *Cache) Evict(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
}

// Addresses lists every address with a cached entry.
func (c *Cache) Addresses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for addr := range c.entries {
		out = append(out, addr)
	}
	return out
}
