// Package ownercache caches the set of valid key IDs owned by each user.
//
// The cache is derived state: every entry is reconstructible from the key
// store, so a read failure degrades to "no valid keys" instead of an error.
// Entries age out after a fixed TTL and the least-recently-used entry is
// evicted once capacity is reached.
package ownercache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/vorahub/keyserver/internal/models"

	log "github.com/sirupsen/logrus"
)

// Defaults mirror the production cache tuning.
const (
	DefaultTTL      = 300 * time.Second
	DefaultCapacity = 2000
)

// OwnerLookup is the slice of the key store the cache reads through.
type OwnerLookup interface {
	FindByOwner(ctx context.Context, userID, discordTag string) ([]models.Key, error)
}

type entry struct {
	userID  string
	keyIDs  []string
	expires time.Time
}

// Cache is a mutex-guarded LRU of per-user valid key sets.
type Cache struct {
	mu       sync.Mutex
	ll       *list.List
	items    map[string]*list.Element
	capacity int
	ttl      time.Duration
	store    OwnerLookup
	now      func() time.Time
}

// New constructs a Cache over the given store. Non-positive capacity or TTL
// fall back to the defaults.
func New(store OwnerLookup, capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		capacity: capacity,
		ttl:      ttl,
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Lookup returns the cached set of valid key IDs for the user, recomputing
// from the key store when the entry is absent, expired, or force is set.
// Store read failures are logged and reported as an empty set.
func (c *Cache) Lookup(ctx context.Context, userID, discordTag string, force bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force {
		if el, ok := c.items[userID]; ok {
			c.ll.MoveToFront(el)
			ent := el.Value.(*entry)
			if c.now().Before(ent.expires) {
				return append([]string(nil), ent.keyIDs...)
			}
		}
	}

	keyIDs, errFetch := c.recompute(ctx, userID, discordTag)
	if errFetch != nil {
		log.WithError(errFetch).WithField("user_id", userID).Error("owner cache: fetch keys failed")
		return []string{}
	}
	c.setLocked(userID, keyIDs)
	return append([]string(nil), keyIDs...)
}

// Invalidate evicts the user's entry and synchronously recomputes it so that
// the very next lookup observes post-mutation state.
func (c *Cache) Invalidate(ctx context.Context, userID, discordTag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(userID)

	keyIDs, errFetch := c.recompute(ctx, userID, discordTag)
	if errFetch != nil {
		// Leave the entry evicted; the next lookup retries the store.
		log.WithError(errFetch).WithField("user_id", userID).Error("owner cache: refresh after invalidate failed")
		return
	}
	c.setLocked(userID, keyIDs)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// recompute queries the store and applies the validity filter: a key counts
// when it is whitelisted, never expires, or has not expired yet.
func (c *Cache) recompute(ctx context.Context, userID, discordTag string) ([]string, error) {
	keys, errFind := c.store.FindByOwner(ctx, userID, discordTag)
	if errFind != nil {
		return nil, errFind
	}
	now := c.now()
	keyIDs := make([]string, 0, len(keys))
	for i := range keys {
		if !keys[i].Expired(now) {
			keyIDs = append(keyIDs, keys[i].ID)
		}
	}
	return keyIDs, nil
}

func (c *Cache) setLocked(userID string, keyIDs []string) {
	ent := &entry{userID: userID, keyIDs: keyIDs, expires: c.now().Add(c.ttl)}
	if el, ok := c.items[userID]; ok {
		el.Value = ent
		c.ll.MoveToFront(el)
		return
	}
	c.items[userID] = c.ll.PushFront(ent)
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.removeLocked(oldest.Value.(*entry).userID)
		}
	}
}

func (c *Cache) removeLocked(userID string) {
	if el, ok := c.items[userID]; ok {
		c.ll.Remove(el)
		delete(c.items, userID)
	}
}
