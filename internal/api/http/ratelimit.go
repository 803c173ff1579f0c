package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/cosmiccode/portal/internal/config"
	"github.com/cosmiccode/portal/internal/observability"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter keeps one token bucket per client IP.
type IPLimiter struct {
	mu      sync.Mutex
	m       map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	metrics *observability.Metrics
	now     func() time.Time
}

// NewContactLimiter builds the limiter guarding the contact form.
func NewContactLimiter(cfg config.ContactConfig, metrics *observability.Metrics) *IPLimiter {
	return &IPLimiter{
		m:       make(map[string]*limiterEntry),
		limit:   rate.Every(time.Minute / time.Duration(cfg.RatePerMinute)),
		burst:   cfg.Burst,
		metrics: metrics,
		now:     time.Now,
	}
}

func (l *IPLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	l.prune(now)
	lim := rate.NewLimiter(l.limit, l.burst)
	l.m[key] = &limiterEntry{limiter: lim, lastSeen: now}
	return lim
}

// prune drops buckets idle long enough to have refilled. Caller holds mu.
func (l *IPLimiter) prune(now time.Time) {
	for k, e := range l.m {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.m, k)
		}
	}
}

// Allow consumes one token for key.
func (l *IPLimiter) Allow(key string) bool {
	return l.get(key).AllowN(l.now(), 1)
}

// Handle rejects requests from an IP that has exhausted its bucket.
func (l *IPLimiter) Handle(c *fiber.Ctx) error {
	if !l.Allow(c.IP()) {
		l.metrics.RecordContact("limited")
		return apperrors.NewTooManyRequests("too many requests, try again later")
	}
	return c.Next()
}
