package memcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"estate_portal/internal/adapters/observability"
	"estate_portal/internal/clock"
)

type entry struct {
	payload    []byte
	insertedAt time.Time
	ttl        time.Duration
}

// Cache is the in-process fallback when no Redis address is configured.
// It satisfies the same port and the same semantics: an entry past its TTL
// is treated as absent. Values are stored as JSON so hits return copies,
// never shared references. Expired entries are dropped lazily on read and
// overwritten on set; the cache does not survive a restart, which is fine
// for its only tenant, the catalog.
type Cache struct {
	mu    sync.RWMutex
	items map[string]entry
	clock clock.Clock
}

func New(clk clock.Clock) *Cache {
	return &Cache{items: make(map[string]entry), clock: clk}
}

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || c.clock.Now().Sub(e.insertedAt) >= e.ttl {
		if ok {
			c.mu.Lock()
			// recheck: a fresher entry may have landed meanwhile
			if cur, still := c.items[key]; still && cur.insertedAt.Equal(e.insertedAt) {
				delete(c.items, key)
			}
			c.mu.Unlock()
		}
		observability.ObserveCache("memory", "miss")
		return false, nil
	}
	observability.ObserveCache("memory", "hit")
	return true, json.Unmarshal(e.payload, dst)
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items[key] = entry{payload: b, insertedAt: c.clock.Now(), ttl: time.Duration(ttlSec) * time.Second}
	c.mu.Unlock()
	observability.ObserveCache("memory", "set")
	return nil
}

func (c *Cache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	observability.ObserveCache("memory", "del")
	return nil
}
