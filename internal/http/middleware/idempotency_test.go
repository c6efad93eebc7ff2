package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_IsReplay_UserIDFromCtx(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected GetIdempotencyKey to be absent for non-string value")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatalf("expected IsReplay=true")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-bool")
	}

	if got := userIDFromCtx(c); got != "anonymous" {
		t.Fatalf("userIDFromCtx fallback mismatch: %q", got)
	}
	req.Header.Set("X-User-ID", " 7 ")
	if got := userIDFromCtx(c); got != "7" {
		t.Fatalf("userIDFromCtx header mismatch: %q", got)
	}
	c.Set("userID", int64(42))
	if got := userIDFromCtx(c); got != "42" {
		t.Fatalf("userIDFromCtx int64 mismatch: %q", got)
	}
	c.Set("userID", "u1")
	if got := userIDFromCtx(c); got != "u1" {
		t.Fatalf("userIDFromCtx string mismatch: %q", got)
	}
}

func TestIdempotencyValidator_InvalidKey_Length(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 5}, nil))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "abcdef") // 6 > 5
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["code"] != "bad_idempotency_key" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestIdempotencyValidator_InvalidKey_Pattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil))
	r.POST("/y", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/y", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc123")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestIdempotencyValidator_IgnoresSafeMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 1}, NewReplayStore(time.Hour)))
	r.GET("/ping", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be stashed for GET")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderIdempotencyKey, "too-long-but-ignored")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func newSendRouter(store *ReplayStore, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, store))
	r.POST("/conversations/:peer/messages", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusCreated, gin.H{"id": *calls})
	})
	r.POST("/fail", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error"})
	})
	return r
}

func post(r http.Handler, path, user, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyValidator_ReplaysSuccessfulResponse(t *testing.T) {
	calls := 0
	store := NewReplayStore(time.Hour)
	r := newSendRouter(store, &calls)

	first := post(r, "/conversations/2/messages", "1", "send-1")
	if first.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("first: code=%d calls=%d", first.Code, calls)
	}

	again := post(r, "/conversations/2/messages", "1", "send-1")
	if again.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("replay: code=%d calls=%d", again.Code, calls)
	}
	if again.Body.String() != first.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", again.Body.String(), first.Body.String())
	}
	if again.Header().Get(HeaderIdempotentReplay) != "true" {
		t.Fatalf("expected replay header")
	}
	if ct := again.Header().Get("Content-Type"); ct == "" {
		t.Fatalf("expected content type on replay")
	}

	// Different user, different peer, or no key: handler runs.
	post(r, "/conversations/2/messages", "3", "send-1")
	post(r, "/conversations/4/messages", "1", "send-1")
	post(r, "/conversations/2/messages", "1", "")
	if calls != 4 {
		t.Fatalf("expected 4 handler calls, got %d", calls)
	}
}

func TestIdempotencyValidator_DoesNotStoreFailures(t *testing.T) {
	calls := 0
	store := NewReplayStore(time.Hour)
	r := newSendRouter(store, &calls)

	post(r, "/fail", "1", "k")
	post(r, "/fail", "1", "k")
	if calls != 2 {
		t.Fatalf("failures must not be replayed, calls=%d", calls)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestReplayStore_Expires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewReplayStore(time.Minute)
	store.now = func() time.Time { return now }

	store.put("k", replay{status: http.StatusCreated, body: []byte(`{"id":1}`)})
	if _, ok := store.get("k"); !ok {
		t.Fatalf("expected entry before TTL")
	}
	now = now.Add(time.Minute)
	if _, ok := store.get("k"); ok {
		t.Fatalf("expected entry to expire at TTL")
	}
	if store.Len() != 0 {
		t.Fatalf("expired entry should be evicted on read")
	}
}
