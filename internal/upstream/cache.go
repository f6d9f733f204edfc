package upstream

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache memoises upstream call results for a fixed TTL. One instance is
// constructed per client and shared by every worker using it. Entries older
// than twice the TTL are swept opportunistically on writes, and the entry
// count is bounded: once it exceeds maxEntries the oldest entries are
// evicted first.
//
// Concurrent misses for the same key are coalesced: the first caller fetches,
// the rest wait for that fetch instead of issuing duplicates.
type Cache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	value    any
	err      error
	storedAt time.Time
	ready    chan struct{}
}

// NewCache constructs a cache with the given TTL and entry bound.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries < 1 {
		maxEntries = 1024
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheEntry),
	}
}

// Key derives a cache key from a function identity and its arguments.
func Key(fn string, args ...any) string {
	var b strings.Builder
	b.WriteString(fn)
	for _, a := range args {
		b.WriteByte(':')
		fmt.Fprint(&b, a)
	}
	return b.String()
}

// Do returns the cached value for key when stored within the TTL, otherwise
// invokes fetch, stores the result, and returns it. Failed fetches are not
// cached. Callers waiting on an in-flight fetch for the same key share its
// outcome.
func (c *Cache) Do(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		select {
		case <-e.ready:
			if time.Since(e.storedAt) < c.ttl {
				value := e.value
				c.mu.Unlock()
				return value, nil
			}
			// Expired, refetch below.
		default:
			// Fetch in flight, wait for its outcome.
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-e.ready:
			}
			if e.err != nil {
				return nil, e.err
			}
			return e.value, nil
		}
	}

	e := &cacheEntry{ready: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	value, err := fetch(ctx)

	c.mu.Lock()
	e.value = value
	e.err = err
	e.storedAt = time.Now()
	close(e.ready)
	if err != nil {
		delete(c.entries, key)
	} else {
		c.sweepLocked()
	}
	c.mu.Unlock()

	return value, err
}

// Len reports the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepLocked drops entries older than twice the TTL, then enforces the
// entry bound by evicting oldest-first. In-flight entries are left alone.
func (c *Cache) sweepLocked() {
	cutoff := time.Now().Add(-2 * c.ttl)
	for key, e := range c.entries {
		select {
		case <-e.ready:
			if e.storedAt.Before(cutoff) {
				delete(c.entries, key)
			}
		default:
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	candidates := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		select {
		case <-e.ready:
			candidates = append(candidates, aged{key: key, storedAt: e.storedAt})
		default:
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].storedAt.Before(candidates[j].storedAt)
	})
	for _, cand := range candidates {
		if len(c.entries) <= c.maxEntries {
			break
		}
		delete(c.entries, cand.key)
	}
}
