package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/arjun-computer-geek/saas-demo/services"
	"github.com/arjun-computer-geek/saas-demo/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	bucketTTL     = 5 * time.Minute
	janitorPeriod = time.Minute
	unknownClient = "unknown"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter throttles requests with a token bucket per client IP. Idle
// buckets are swept by a background janitor.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
	logger  *zap.Logger
}

// NewRateLimiter creates a limiter allowing perSecond requests per IP with
// the given burst.
func NewRateLimiter(perSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
		logger:  logger,
	}
}

// Run sweeps idle buckets until ctx is done
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *RateLimiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for k, b := range l.buckets {
		if now.Sub(b.seen) > bucketTTL {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Allow reports whether a request from ip may proceed
func (l *RateLimiter) Allow(ip string) bool {
	if ip == "" {
		ip = unknownClient
	}
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = l.now()
	l.mu.Unlock()
	return b.lim.Allow()
}

// Limit rejects throttled requests with 429
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.Allow(ip) {
			l.logger.Warn("request throttled",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("client_ip", ip),
				zap.String("path", r.URL.Path))
			if _, err := utils.WriteDomainError(w, services.ErrRateLimitExceeded); err != nil {
				l.logger.Error("failed to write rate limit response", zap.Error(err))
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// resolved from forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
