package mcp

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

// credentialArgKeys are argument names whose values never participate in
// cache keys. Two calls differing only in credentials hit the same entry,
// and secrets never appear in any key-derived artifact.
var credentialArgKeys = map[string]bool{
	"token":         true,
	"password":      true,
	"authorization": true,
	"api_key":       true,
	"apikey":        true,
	"secret":        true,
	"bearer_token":  true,
}

// cacheEntry is one stored result with its expiry.
type cacheEntry struct {
	data      any
	expiresAt time.Time
}

// resultCache is a TTL cache for operation results, keyed by an FNV-64a hash
// of the operation name and its sorted non-credential arguments.
type resultCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[uint64]*cacheEntry

	// now is swappable for tests.
	now func() time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[uint64]*cacheEntry),
		now:     time.Now,
	}
}

// cacheKey hashes operation + sorted args. Credential-named arguments are
// excluded entirely.
func cacheKey(operation string, args map[string]any) uint64 {
	names := make([]string, 0, len(args))
	for name := range args {
		if credentialArgKeys[strings.ToLower(name)] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	_, _ = h.Write([]byte(operation))
	for _, name := range names {
		_, _ = fmt.Fprintf(h, "|%s=%v", name, args[name])
	}
	return h.Sum64()
}

// Get returns the cached value for (operation, args) if present and fresh.
func (c *resultCache) Get(operation string, args map[string]any) (any, bool) {
	key := cacheKey(operation, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.data, true
}

// Put stores a value for (operation, args) with the cache TTL.
func (c *resultCache) Put(operation string, args map[string]any, data any) {
	if c.ttl <= 0 {
		return
	}
	key := cacheKey(operation, args)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Purge drops every entry. Used by Phase 0 cleanup and tests.
func (c *resultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*cacheEntry)
}

// Len returns the number of stored entries, expired or not.
func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
