package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"saldo/internal/cache"
	"saldo/internal/core"
)

// Cached is a read-through cache in front of a Store. Concurrent loads of
// the same user share a single backend call.
//
// A load only fills the cache when no save for that user started or
// finished while it was in flight, so a slow load never replaces a newer
// saved ledger.
type Cached struct {
	next         Store
	items        *cache.LRUCache[core.Ledger]
	group        singleflight.Group
	writeThrough bool

	mu          sync.Mutex
	generations map[string]uint64
}

// NewCached wraps s with the given cache. Saved ledgers are written through
// to the cache. Ledgers are values, so cached entries can be handed out
// without copying.
func NewCached(s Store, items *cache.LRUCache[core.Ledger]) *Cached {
	return &Cached{next: s, items: items, writeThrough: true, generations: make(map[string]uint64)}
}

// NewReadThrough wraps s so that saves drop the cached entry instead of
// storing the given ledger. The next load then returns what the backend
// actually kept, which matters for backends that rewrite what they store.
func NewReadThrough(s Store, items *cache.LRUCache[core.Ledger]) *Cached {
	c := NewCached(s, items)
	c.writeThrough = false
	return c
}

func (c *Cached) Load(ctx context.Context, userID string) (core.Ledger, error) {
	if l, ok := c.items.Get(userID); ok {
		return l, nil
	}
	v, err, _ := c.group.Do(userID, func() (any, error) {
		gen := c.generation(userID)
		l, err := c.next.Load(ctx, userID)
		if err != nil {
			return core.Ledger{}, err
		}
		c.mu.Lock()
		if c.generations[userID] == gen {
			c.items.Set(userID, l)
		}
		c.mu.Unlock()
		return l, nil
	})
	if err != nil {
		return core.Ledger{}, err
	}
	return v.(core.Ledger), nil
}

func (c *Cached) Save(ctx context.Context, userID string, l core.Ledger) error {
	c.bump(userID)
	c.group.Forget(userID)
	err := c.next.Save(ctx, userID, l)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[userID]++
	if err != nil || !c.writeThrough {
		// The backend state is unknown after a failed save.
		c.items.Delete(userID)
		return err
	}
	c.items.Set(userID, l)
	return nil
}

// Invalidate drops any cached ledger for userID.
func (c *Cached) Invalidate(userID string) {
	c.bump(userID)
	c.group.Forget(userID)
	c.items.Delete(userID)
}

func (c *Cached) generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID]
}

func (c *Cached) bump(userID string) {
	c.mu.Lock()
	c.generations[userID]++
	c.mu.Unlock()
}
