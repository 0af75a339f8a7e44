package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tripook/tripook-backend/pkg/clientip"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles credential-guessing per client IP in-process:
// 1 attempt per 2 seconds with a burst of 5. Entries idle for an hour are
// evicted on the fly.
type LoginLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{entries: make(map[string]*limiterEntry)}
}

func (l *LoginLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, ok := l.entries[ip]; ok {
		e.lastSeen = now
		return e.limiter
	}

	for ip, e := range l.entries {
		if now.Sub(e.lastSeen) > time.Hour {
			delete(l.entries, ip)
		}
	}

	e := &limiterEntry{
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 5),
		lastSeen: now,
	}
	l.entries[ip] = e
	return e.limiter
}

func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiterFor(clientip.RealClientIP(r)).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many sign-in attempts. Please slow down."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
