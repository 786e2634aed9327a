// Package ratelimit throttles repeated redemption attempts per user.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	log "github.com/sirupsen/logrus"
)

// DefaultCooldown matches the production redemption throttle.
const DefaultCooldown = 3 * time.Second

// Cooldown tracks the last attempt per user. When a Redis client is
// provided the state is shared across instances; otherwise an in-process
// map is used.
type Cooldown struct {
	window time.Duration
	rdb    *redis.Client

	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// New constructs a Cooldown. rdb may be nil for in-memory tracking.
func New(rdb *redis.Client, window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{
		window: window,
		rdb:    rdb,
		seen:   make(map[string]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Allow reports whether the user may attempt now, and records the attempt
// when allowed. Redis failures fall back to allowing the request; the
// throttle is a courtesy, not a security boundary.
func (c *Cooldown) Allow(ctx context.Context, userID string) bool {
	if c.rdb != nil {
		ok, errSet := c.rdb.SetNX(ctx, "cooldown:redeem:"+userID, 1, c.window).Result()
		if errSet != nil {
			log.WithError(errSet).Warn("ratelimit: redis unavailable, allowing request")
			return true
		}
		return ok
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.seen[userID]; ok && now.Sub(last) < c.window {
		return false
	}
	c.seen[userID] = now
	c.sweepLocked(now)
	return true
}

// sweepLocked drops stale entries to bound memory.
func (c *Cooldown) sweepLocked(now time.Time) {
	if len(c.seen) < 4096 {
		return
	}
	for user, last := range c.seen {
		if now.Sub(last) >= c.window {
			delete(c.seen, user)
		}
	}
}
