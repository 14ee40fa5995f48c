package query

import (
	"strings"
	"sync"
)

// KeyCache remembers primary key lookups so repeated inserts into a table
// skip the catalog query. Entries do not expire; call Forget after a table
// is altered. A KeyCache is safe for concurrent use and may be shared by
// statements of every dialect.
type KeyCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]any
}

// cacheKey identifies a lookup by dialect, table and declared key.
type cacheKey struct {
	dialect string
	table   string
	pkey    string
}

// NewKeyCache returns an empty cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{entries: make(map[cacheKey]any)}
}

// Len returns the number of cached lookups.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Forget removes the lookups of table, as written in Table without alias
// and quotes, e.g. "dbo.users".
func (c *KeyCache) Forget(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.table == table {
			delete(c.entries, k)
		}
	}
}

// Clear removes all lookups.
func (c *KeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// cachedLookup returns the cached result of the key lookup of s, or runs
// lookup and caches its result. Errors are not cached.
func cachedLookup[T any](s *Statement, lookup func() (T, error)) (T, error) {
	c := s.keyCache
	if c == nil {
		return lookup()
	}
	k := cacheKey{dialect: s.dialect.Name(), table: s.baseTable(), pkey: strings.Join(s.pkey, ",")}
	c.mu.RLock()
	v, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return v.(T), nil
	}
	res, err := lookup()
	if err != nil {
		return res, err
	}
	c.mu.Lock()
	c.entries[k] = res
	c.mu.Unlock()
	return res, nil
}
