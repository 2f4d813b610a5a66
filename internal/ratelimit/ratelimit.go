package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/sendrec/devicelab/internal/httputil"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is a per-client token bucket. Idle buckets are evicted by a
// background sweep until Stop is called.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	idleTTL time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    requestsPerSecond,
		burst:   float64(burst),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweep(5 * time.Minute)
	return l
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	b.lastSeen = now
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(httputil.ClientIP(r)) {
			w.Header().Set("Retry-After", "10")
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
