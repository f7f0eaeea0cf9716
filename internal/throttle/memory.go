package throttle

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	failures int
	expires  time.Time
}

// MemoryLimiter keeps failure counters in process memory.
type MemoryLimiter struct {
	mu          sync.Mutex
	maxFailures int
	window      time.Duration
	now         func() time.Time
	entries     map[string]*memEntry
	lastSweep   time.Time
}

func NewMemoryLimiter(maxFailures int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
		entries:     make(map[string]*memEntry),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.maxFailures <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.live(Key(key))
	return e == nil || e.failures < l.maxFailures, nil
}

func (l *MemoryLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep()
	k := Key(key)
	e := l.live(k)
	if e == nil {
		e = &memEntry{expires: l.now().Add(l.window)}
		l.entries[k] = e
	}
	e.failures++
	return nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, Key(key))
	return nil
}

// live returns the entry for k, dropping it if its window has passed. Callers hold mu.
func (l *MemoryLimiter) live(k string) *memEntry {
	e, ok := l.entries[k]
	if !ok {
		return nil
	}
	if !l.now().Before(e.expires) {
		delete(l.entries, k)
		return nil
	}
	return e
}

// sweep drops every expired entry, at most once per window, so keys that are
// never looked up again do not accumulate. Callers hold mu.
func (l *MemoryLimiter) sweep() {
	now := l.now()
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, e := range l.entries {
		if !now.Before(e.expires) {
			delete(l.entries, k)
		}
	}
}
