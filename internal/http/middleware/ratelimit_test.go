package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakeClock pins the limiter's notion of "now" so token refill is exact.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-rl"); c.Next() })
	r.Use(rl.Handler())
	r.POST("/api/v1/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/contacts", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r http.Handler, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = net.JoinHostPort("198.51.100.7", "40000")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	key := KeyByUserOrIP()
	assert.Equal(t, "ip:203.0.113.9", key(c))

	c.Request.Header.Set("X-User-ID", "9")
	assert.Equal(t, "user:9", key(c))

	c.Set("userID", int64(42))
	assert.Equal(t, "user:42", key(c), "context user wins over header")
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByUserOrIP())
	assert.Equal(t, 1, rl.burst, "non-positive burst coerced to 1")

	now := time.Unix(1_700_000_000, 0)
	lim := rl.getVisitor("user:1", now)
	require.NotNil(t, lim)
	assert.Same(t, lim, rl.getVisitor("user:1", now.Add(time.Second)))
	assert.NotSame(t, lim, rl.getVisitor("user:2", now))
}

func TestWithRouteCost_ClampsToBurst(t *testing.T) {
	rl := NewRateLimiter(1, 4, KeyByUserOrIP()).
		WithRouteCost(http.MethodPost, "/api/v1/sessions", 10).
		WithRouteCost(http.MethodPost, "/api/v1/users", 0)

	assert.Equal(t, 4, rl.costs["POST /api/v1/sessions"])
	assert.Equal(t, 1, rl.costs["POST /api/v1/users"])
}

func TestGetVisitor_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	now := time.Unix(1_700_000_000, 0)

	rl.visitors["ip:stale"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Hour)}
	rl.visitors["user:fresh"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-time.Minute)}
	rl.lookups = sweepEvery - 1

	rl.getVisitor("user:new", now)

	assert.NotContains(t, rl.visitors, "ip:stale")
	assert.Contains(t, rl.visitors, "user:fresh")
	assert.Contains(t, rl.visitors, "user:new")
	assert.Zero(t, rl.lookups)
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.False(t, IsRateBypass(c))
	c.Set(ctxKeyRateBypass, true)
	assert.True(t, IsRateBypass(c))
	c.Set(ctxKeyRateBypass, "yes")
	assert.False(t, IsRateBypass(c), "non-bool flag is ignored")
}

func TestRateLimiter_RejectsWithRetryAfterThenRefills(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.now = clk.now
	r := newLimitedRouter(rl)

	before := testutil.ToFloat64(rateLimited.WithLabelValues("/api/v1/contacts"))

	require.Equal(t, http.StatusOK, hit(r, http.MethodGet, "/api/v1/contacts", "1").Code)

	w := hit(r, http.MethodGet, "/api/v1/contacts", "1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{
		"request_id": "rid-rl",
		"code":       "rate_limited",
		"message":    "rate limit exceeded",
	}, body)
	assert.Equal(t, before+1, testutil.ToFloat64(rateLimited.WithLabelValues("/api/v1/contacts")))

	// Another user has an independent bucket.
	assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "/api/v1/contacts", "2").Code)

	// The rejected call did not hold tokens, so one second is enough.
	clk.advance(time.Second)
	assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "/api/v1/contacts", "1").Code)
}

func TestRateLimiter_LoginCostsMore(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewRateLimiter(1, 5, KeyByUserOrIP()).
		WithRouteCost(http.MethodPost, "/api/v1/sessions", 5)
	rl.now = clk.now
	r := newLimitedRouter(rl)

	require.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/api/v1/sessions", "").Code)

	// The bucket is drained for this IP, including cheap routes.
	w := hit(r, http.MethodGet, "/api/v1/contacts", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	clk.advance(2 * time.Second)
	w = hit(r, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))

	clk.advance(3 * time.Second)
	assert.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/api/v1/sessions", "").Code)
}

func TestRateLimiter_ReplaySkipsBucket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.now = clk.now

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(replay bool) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-User-ID", "7")
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, send(false))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send(true))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(false))
}
