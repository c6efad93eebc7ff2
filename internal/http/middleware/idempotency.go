// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotent replay for unsafe HTTP methods (POST). A
// client that retries "send message" or "register" after a dropped response
// sends the same Idempotency-Key; the first successful response is kept for
// a TTL and served again verbatim instead of creating a duplicate.
//
// Downstream components can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect replayed requests (IsReplay)
//   - bypass rate limiting when a replay is served (via an internal flag)
package middleware

import (
	"bytes"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the canonical request header that clients use to
// convey an idempotency key for unsafe operations.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay is set on responses served from the replay store.
const HeaderIdempotentReplay = "Idempotent-Replayed"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay was served
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the request was answered from the replay store.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, a conservative RFC7230-like
	// token pattern is used: ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// replay is a stored successful response.
type replay struct {
	status      int
	contentType string
	body        []byte
	expires     time.Time
}

// ReplayStore keeps successful responses by scoped idempotency key for a
// TTL. It is process-local and safe for concurrent use.
type ReplayStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]replay
	puts    uint64
}

// NewReplayStore returns a store that keeps responses for ttl. A
// non-positive ttl defaults to 24h.
func NewReplayStore(ttl time.Duration) *ReplayStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReplayStore{ttl: ttl, now: time.Now, entries: make(map[string]replay)}
}

func (s *ReplayStore) get(key string) (replay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[key]
	if !ok {
		return replay{}, false
	}
	if !s.now().Before(r.expires) {
		delete(s.entries, key)
		return replay{}, false
	}
	return r, true
}

func (s *ReplayStore) put(key string, r replay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r.expires = now.Add(s.ttl)
	s.entries[key] = r

	// Opportunistic sweep of expired entries.
	s.puts++
	if s.puts%1000 == 0 {
		for k, v := range s.entries {
			if !now.Before(v.expires) {
				delete(s.entries, k)
			}
		}
	}
}

// Len returns the number of stored responses, expired or not.
func (s *ReplayStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// captureWriter tees the response body so it can be stored for replay.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyValidator validates the Idempotency-Key header on POST requests
// and replays stored responses.
//
// Behavior:
//   - Non-POST requests, or requests without the header: no-op.
//   - Invalid header: responds 400 with a compact error body.
//   - Stored response for (user, route, key): served verbatim with the
//     Idempotent-Replayed header; replay and rate-bypass flags are set.
//   - Otherwise the request proceeds and a 2xx response is stored.
//
// Keys are scoped by the X-User-ID header and the request path, so two users
// (or two conversations) never share a replay.
func IdempotencyValidator(opts IdempotencyOptions, store *ReplayStore) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if store == nil {
			c.Next()
			return
		}

		scoped := userIDFromCtx(c) + "|" + c.Request.URL.Path + "|" + key
		if r, ok := store.get(scoped); ok {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
			c.Header(HeaderIdempotentReplay, "true")
			c.Data(r.status, r.contentType, r.body)
			c.Abort()
			return
		}

		cw := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = cw
		c.Next()

		if st := cw.Status(); st >= 200 && st < 300 {
			store.put(scoped, replay{
				status:      st,
				contentType: cw.Header().Get("Content-Type"),
				body:        bytes.Clone(cw.buf.Bytes()),
			})
		}
	}
}

// anonymousUser identifies requests without an acting user.
const anonymousUser = "anonymous"

// userIDFromCtx extracts the acting user identity from the Gin context (as
// set by upstream middleware) or the X-User-ID header. anonymousUser is
// returned when neither is present.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		switch id := v.(type) {
		case string:
			if id != "" {
				return id
			}
		case int64:
			if id > 0 {
				return strconv.FormatInt(id, 10)
			}
		}
	}
	if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
		return h
	}
	return anonymousUser
}
