// Package ratelimit implements per-user fixed-window admission control for
// outbound messages. Windows live only in process memory: a restart resets
// every limit, and entries are never evicted (one small struct per user ever
// seen).
package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

type window struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

type shard struct {
	mu      sync.RWMutex
	windows map[string]*window
}

// Limiter admits or rejects one send per call. Same-user calls serialize on
// the window's own mutex; different users land on independent shards and do
// not contend.
type Limiter struct {
	max    int
	window time.Duration
	shards [shardCount]*shard
}

// Result reports the admission decision. RetryAfter is only meaningful when
// Allowed is false.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

func NewLimiter(max int, windowSize time.Duration) *Limiter {
	l := &Limiter{max: max, window: windowSize}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	return l
}

func (l *Limiter) Admit(userID string, now time.Time) Result {
	w := l.windowFor(userID)

	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := now.Sub(w.windowStart)
	if elapsed > l.window {
		w.count = 0
		w.windowStart = now
		elapsed = 0
	}
	if w.count >= l.max {
		return Result{Allowed: false, RetryAfter: l.window - elapsed}
	}
	w.count++
	return Result{Allowed: true}
}

func (l *Limiter) windowFor(userID string) *window {
	s := l.shards[xxhash.Sum64String(userID)%shardCount]

	s.mu.RLock()
	w, ok := s.windows[userID]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok = s.windows[userID]; ok {
		return w
	}
	w = &window{}
	s.windows[userID] = w
	return w
}
