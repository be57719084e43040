package httpserver

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTimeout is how long an address keeps its limiter after its
// last form post.
const limiterIdleTimeout = 10 * time.Minute

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimitStore holds one token bucket per client address for the form
// posts that reach the identity provider, the steps API or the mailer.
type rateLimitStore struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.Mutex
	cleanup  *time.Ticker
	done     chan struct{}
	stop     sync.Once
}

func newRateLimitStore() *rateLimitStore {
	store := &rateLimitStore{
		limiters: make(map[string]*rateLimiterEntry),
		cleanup:  time.NewTicker(5 * time.Minute),
		done:     make(chan struct{}),
	}
	go store.cleanupOldEntries()
	return store
}

// Stop stops the cleanup goroutine.
func (r *rateLimitStore) Stop() {
	r.stop.Do(func() {
		r.cleanup.Stop()
		close(r.done)
	})
}

// Reset clears all limiters.
func (r *rateLimitStore) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters = make(map[string]*rateLimiterEntry)
}

func (r *rateLimitStore) cleanupOldEntries() {
	for {
		select {
		case <-r.done:
			return
		case now := <-r.cleanup.C:
			r.mu.Lock()
			for ip, entry := range r.limiters {
				if now.Sub(entry.lastSeen) > limiterIdleTimeout {
					delete(r.limiters, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}

// allow reports whether ip may make another request, creating a limiter of
// requestsPerMinute with an equal burst on first use.
func (r *rateLimitStore) allow(ip string, requestsPerMinute int) bool {
	r.mu.Lock()
	entry, ok := r.limiters[ip]
	if !ok {
		interval := time.Minute / time.Duration(requestsPerMinute)
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rate.Every(interval), requestsPerMinute)}
		r.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	r.mu.Unlock()
	return entry.limiter.Allow()
}

// getClientIP returns the first X-Forwarded-For address, then X-Real-IP,
// then the connection's remote host.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimitMiddleware(store *rateLimitStore, requestsPerMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.allow(getClientIP(r), requestsPerMinute) {
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResetRateLimits clears every client's limiter.
func (s *Server) ResetRateLimits() {
	if s.rateLimitStore != nil {
		s.rateLimitStore.Reset()
	}
}
