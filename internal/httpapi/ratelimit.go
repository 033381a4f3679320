package httpapi

import (
	"net/http"
	"sync"
	"time"

	"member-portal/pkg/logger"
	"member-portal/pkg/respond"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientLimiter keeps one token bucket per client key. Buckets idle for
// longer than ttl are dropped by a sweep that runs at most once per ttl.
type ClientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	entries   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewClientLimiter(perSecond float64, burst int, ttl time.Duration) *ClientLimiter {
	return &ClientLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     ttl,
		entries: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	b := l.entries[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = b
	}
	b.lastSeen = now

	if now.Sub(l.lastSweep) > l.ttl {
		l.sweep(now)
	}
	return b.lim.AllowN(now, 1)
}

func (l *ClientLimiter) sweep(now time.Time) {
	for k, v := range l.entries {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.entries, k)
		}
	}
	l.lastSweep = now
}

// Middleware rejects over-limit clients with 429 RATE_LIMITED.
func (l *ClientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			logger.FromGin(c).Warn("rate limited", "client_ip", ip)
			respond.Error(c, http.StatusTooManyRequests, respond.RateLimited)
			return
		}
		c.Next()
	}
}
