package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter keeps one token bucket per key, e.g. per operator at the gate.
type KeyedLimiter struct {
	mu              sync.Mutex
	limit           rate.Limit
	burst           int
	items           map[string]*keyedEntry
	idleTTL         time.Duration
	lastCleanup     time.Time
	cleanupInterval time.Duration
	now             func() time.Time
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter gives every key its own bucket of burst tokens refilled at perSecond.
func NewKeyedLimiter(perSecond float64, burst int) *KeyedLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		limit:           rate.Limit(perSecond),
		burst:           burst,
		items:           make(map[string]*keyedEntry),
		idleTTL:         10 * time.Minute,
		lastCleanup:     time.Now(),
		cleanupInterval: time.Minute,
		now:             time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *KeyedLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup(now)

	entry, ok := l.items[key]
	if !ok {
		entry = &keyedEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.items[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// maybeCleanup drops buckets that have been idle longer than idleTTL.
func (l *KeyedLimiter) maybeCleanup(now time.Time) {
	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < l.cleanupInterval {
		return
	}
	for key, entry := range l.items {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.items, key)
		}
	}
	l.lastCleanup = now
}
