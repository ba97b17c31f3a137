package web

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	appLog "repaircal/internal/log"
)

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore hands out one token bucket per client IP. Buckets idle for
// longer than ttl are dropped on the next sweep, which runs from get at
// most once per ttl.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	every     rate.Limit
	burst     int
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterStore(perMinute, burst int) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*clientLimiter),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		ttl:      limiterIdleTTL,
		now:      time.Now,
	}
}

func (s *limiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.ttl {
		s.sweep(now)
	}

	c, ok := s.limiters[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(s.every, s.burst)}
		s.limiters[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// sweep drops idle buckets. Callers hold s.mu.
func (s *limiterStore) sweep(now time.Time) {
	dropped := 0
	for ip, c := range s.limiters {
		if now.Sub(c.lastSeen) >= s.ttl {
			delete(s.limiters, ip)
			dropped++
		}
	}
	s.lastSweep = now
	if dropped > 0 {
		appLog.Debug("rate limiter sweep", "dropped", dropped, "kept", len(s.limiters))
	}
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// rateLimit throttles /api/ requests per client IP. Other paths pass through.
func rateLimit(store *limiterStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if !store.get(ip).Allow() {
			appLog.Info("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "リクエストが多すぎます。しばらくしてから再度お試しください")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
