// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local token-bucket rate limiter. Buckets are
// keyed by the acting user (X-User-ID) or, for anonymous calls such as
// register and login, by client IP. Routes can be given a cost so that
// credential guessing against POST /sessions drains a bucket faster than
// reading a conversation does. Responses replayed by IdempotencyValidator
// never consume tokens.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "messenger_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	},
	[]string{"route"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by "user:<id>" when the request names an acting
// user and by "ip:<addr>" otherwise.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := userIDFromCtx(c); id != anonymousUser {
			return "user:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Idle buckets are evicted
// after ttl by an opportunistic sweep every sweepEvery lookups. Safe for
// concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc
	costs map[string]int // "METHOD route" -> tokens
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

const sweepEvery = 5000

// NewRateLimiter constructs a limiter refilling rps tokens per second up to
// burst (coerced to at least 1), keyed by keyFn. Every request costs one
// token unless WithRouteCost says otherwise.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		costs:    make(map[string]int),
		now:      time.Now,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// WithRouteCost makes requests matching method and the Gin route pattern
// (e.g. "/api/v1/sessions") consume cost tokens. Cost is clamped to
// [1, burst] so the route can always eventually be reached. Call before the
// handler serves traffic.
func (rl *RateLimiter) WithRouteCost(method, route string, cost int) *RateLimiter {
	rl.costs[method+" "+route] = min(max(cost, 1), rl.burst)
	return rl
}

func (rl *RateLimiter) cost(c *gin.Context) int {
	if n, ok := rl.costs[c.Request.Method+" "+c.FullPath()]; ok {
		return n
	}
	return 1
}

// getVisitor returns the limiter for key, creating it if absent. The sweep
// runs before the lookup so a stale bucket is dropped even when it is the
// one requested.
func (rl *RateLimiter) getVisitor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay that must not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware. A request that cannot be served now is
// rejected without consuming tokens:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds until enough tokens>
//	{"request_id": "...", "code": "rate_limited", "message": "rate limit exceeded"}
//
// Retry-After is omitted when the bucket never refills (rps = 0).
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		res := rl.getVisitor(rl.keyFn(c), now).ReserveN(now, rl.cost(c))
		delay := res.DelayFrom(now)
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		rateLimited.WithLabelValues(route).Inc()

		if res.OK() && delay != rate.InfDuration {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
