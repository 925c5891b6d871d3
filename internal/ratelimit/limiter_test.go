package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdmitWithinLimit(t *testing.T) {
	l := NewLimiter(5, 5*time.Second)
	now := time.Now()

	for i := 0; i < 5; i++ {
		res := l.Admit("alice", now)
		assert.True(t, res.Allowed, "send %d should be admitted", i+1)
	}

	res := l.Admit("alice", now)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5*time.Second, res.RetryAfter)
}

func TestRetryAfterShrinksWithElapsedTime(t *testing.T) {
	l := NewLimiter(2, 5*time.Second)
	base := time.Now()

	l.Admit("bob", base)
	l.Admit("bob", base)

	res := l.Admit("bob", base.Add(2*time.Second))
	assert.False(t, res.Allowed)
	assert.Equal(t, 3*time.Second, res.RetryAfter)
}

func TestWindowResets(t *testing.T) {
	l := NewLimiter(1, 5*time.Second)
	base := time.Now()

	assert.True(t, l.Admit("carol", base).Allowed)
	assert.False(t, l.Admit("carol", base.Add(time.Second)).Allowed)

	// Past the window boundary a fresh window opens.
	res := l.Admit("carol", base.Add(5*time.Second+time.Millisecond))
	assert.True(t, res.Allowed)
}

func TestUsersAreIndependent(t *testing.T) {
	l := NewLimiter(1, 5*time.Second)
	now := time.Now()

	assert.True(t, l.Admit("alice", now).Allowed)
	assert.False(t, l.Admit("alice", now).Allowed)

	// alice being throttled never affects bob.
	assert.True(t, l.Admit("bob", now).Allowed)
}

func TestConcurrentAdmitsNeverExceedMax(t *testing.T) {
	const max = 5
	l := NewLimiter(max, time.Minute)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("dave", now).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, allowed)
}
