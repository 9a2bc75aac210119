package ratelimit

import (
	"net/http"
	"sync"
	"time"
)

// Limiter allows a fixed number of requests per client and window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	count int
}

// Config holds rate limiter configuration
type Config struct {
	Requests        int
	Period          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns 60 requests per minute.
func DefaultConfig() Config {
	return Config{
		Requests:        60,
		Period:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter starts a limiter and its cleanup goroutine; call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Requests <= 0 {
		cfg.Requests = def.Requests
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		clients: make(map[string]*window),
		limit:   cfg.Requests,
		period:  cfg.Period,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanup(cfg.CleanupInterval)
	return l
}

// Allow records one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.period {
		l.clients[key] = &window{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= l.limit
}

// ActiveClients returns the number of currently tracked clients
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictExpired()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evictExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, w := range l.clients {
		if now.Sub(w.start) >= l.period {
			delete(l.clients, key)
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware limits the requests accepted by filter, keyed by client IP.
// A nil filter limits every request.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, filter func(*http.Request) bool, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if filter == nil || filter(r) {
				if !l.Allow(extractIP(r)) {
					w.Header().Set("Retry-After", "60")
					if onLimit != nil {
						onLimit(w, r)
					} else {
						http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
					}
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Mutating matches requests that change data.
func Mutating(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
