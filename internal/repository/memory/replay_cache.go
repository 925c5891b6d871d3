package memory

import (
	"time"

	"moodchat-be/internal/model"

	"github.com/patrickmn/go-cache"
)

const replayKey = "recent_messages"

// ReplayCache keeps the recent-message window served on every join out of
// the hot path. Invalidated whenever a message lands; the short TTL bounds
// how stale a cached classification can get.
type ReplayCache struct {
	cache *cache.Cache
}

func NewReplayCache(ttl time.Duration) *ReplayCache {
	return &ReplayCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *ReplayCache) Get() ([]*model.Message, bool) {
	if x, found := c.cache.Get(replayKey); found {
		return x.([]*model.Message), true
	}
	return nil, false
}

func (c *ReplayCache) Set(messages []*model.Message) {
	c.cache.Set(replayKey, messages, cache.DefaultExpiration)
}

func (c *ReplayCache) Invalidate() {
	c.cache.Delete(replayKey)
}
