package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-local-messenger/internal/config"
	"github.com/tbourn/go-local-messenger/internal/http/middleware"
	"github.com/tbourn/go-local-messenger/internal/repo"
)

// newTestStore opens a fallback-engine store with file blobs under a temp dir.
func newTestStore(t *testing.T) *repo.Store {
	t.Helper()
	store := repo.NewStore(repo.Options{
		Backend:    repo.ModeFallback,
		BlobDriver: "file",
		BlobPath:   filepath.Join(t.TempDir(), "blobs"),
	})
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath:    base,
		RateRPS:        100,
		RateBurst:      10,
		RateAuthCost:   1,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
		IdempotencyTTL: time.Hour,
	}
}

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestStore(t), cfg)
	return r
}

// call sends body as JSON, acting as user when non-empty. hdr holds extra
// header name/value pairs.
func call(r http.Handler, method, path, user string, body any, hdr ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_OperationalEndpoints(t *testing.T) {
	r := newRouter(t, testConfig("/api/v1"))

	w := call(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"fallback"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Empty(t, w.Header().Get("Cache-Control"), "health is not per-user")

	w = call(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "messenger_http_requests_total")

	w = call(r, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_found"`)

	w = call(r, http.MethodPost, "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"method_not_allowed"`)
}

func TestRegisterRoutes_CORSAllowlistEcho(t *testing.T) {
	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newRouter(t, cfg)

	w := call(r, http.MethodGet, "/health", "", nil, "Origin", "http://example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = call(r, http.MethodGet, "/health", "", nil, "Origin", "http://evil.test")
	assert.NotEqual(t, "http://evil.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	small := httptest.NewRecorder()
	r.ServeHTTP(small, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789")))
	assert.Equal(t, http.StatusOK, small.Code)

	big := httptest.NewRecorder()
	r.ServeHTTP(big, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, big.Code)
}

func TestGroupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for p, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, want, w.Body.String(), p)
	}
}

func TestRegisterRoutes_APIUnderBasePath(t *testing.T) {
	r := newRouter(t, testConfig("/api/v1"))

	for _, u := range []string{"alice", "bob"} {
		w := call(r, http.MethodPost, "/api/v1/users", "", map[string]string{"username": u, "password": "pw"})
		require.Equal(t, http.StatusCreated, w.Code, "register %s: %s", u, w.Body.String())
	}

	w := call(r, http.MethodPost, "/api/v1/sessions", "", map[string]string{"username": "bob", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(r, http.MethodPost, "/api/v1/conversations/2/messages", "1", map[string]string{"content": "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(r, http.MethodGet, "/api/v1/conversations/1/messages", "2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hi"`)
	assert.Equal(t, "private, no-cache", w.Header().Get("Cache-Control"))

	w = call(r, http.MethodGet, "/api/v1/contacts", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bob"`)

	assert.Equal(t, http.StatusNoContent,
		call(r, http.MethodPut, "/api/v1/messages/1", "1", map[string]string{"content": "edited"}).Code)
	assert.Equal(t, http.StatusNoContent, call(r, http.MethodDelete, "/api/v1/messages/1", "1", nil).Code)

	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/contacts", "1", nil).Code,
		"API is not mounted at root")
}

func TestRegisterRoutes_IdempotentSendIsReplayed(t *testing.T) {
	r := newRouter(t, testConfig("/api/v1"))
	for _, u := range []string{"alice", "bob"} {
		call(r, http.MethodPost, "/api/v1/users", "", map[string]string{"username": u, "password": "pw"})
	}

	body := map[string]string{"content": "only once"}
	first := call(r, http.MethodPost, "/api/v1/conversations/2/messages", "1", body, middleware.HeaderIdempotencyKey, "retry-1")
	again := call(r, http.MethodPost, "/api/v1/conversations/2/messages", "1", body, middleware.HeaderIdempotencyKey, "retry-1")
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(middleware.HeaderIdempotentReplay))
	assert.Equal(t, first.Body.String(), again.Body.String())

	w := call(r, http.MethodGet, "/api/v1/conversations/2/messages", "1", nil)
	var resp struct {
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 1, "the retry must not store a second message")
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	off := newRouter(t, testConfig("/api/v1"))
	assert.Equal(t, http.StatusNotFound, call(off, http.MethodGet, "/swagger/index.html", "", nil).Code)

	cfg := testConfig("/api/v1")
	cfg.SwaggerEnabled = true
	on := newRouter(t, cfg)
	assert.Equal(t, http.StatusOK, call(on, http.MethodGet, "/swagger/index.html", "", nil).Code)
}

func TestRegisterRoutes_GzipWhenAccepted(t *testing.T) {
	r := newRouter(t, testConfig("/api/v1"))

	w := call(r, http.MethodGet, "/health", "", nil, "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"backend":"fallback"`)
}

func TestRegisterRoutes_LoginDrainsRateBucket(t *testing.T) {
	cfg := testConfig("/")
	cfg.RateRPS = 0.001
	cfg.RateBurst = 6
	cfg.RateAuthCost = 3
	r := newRouter(t, cfg)

	creds := map[string]string{"username": "carol", "password": "pw"}
	require.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/users", "", creds).Code)
	require.Equal(t, http.StatusOK, call(r, http.MethodPost, "/sessions", "", creds).Code)

	w := call(r, http.MethodPost, "/sessions", "", creds)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/metrics", "", nil).Code,
		"scrapes are not rate limited")
}
