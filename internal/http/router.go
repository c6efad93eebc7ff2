// Package httpapi assembles the messenger's Gin engine: the middleware
// stack, operational endpoints (/health, /metrics, /swagger) and the API
// routes mounted under the configured base path.
package httpapi

import (
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-local-messenger/internal/config"
	"github.com/tbourn/go-local-messenger/internal/http/handlers"
	"github.com/tbourn/go-local-messenger/internal/http/middleware"
	"github.com/tbourn/go-local-messenger/internal/repo"
	"github.com/tbourn/go-local-messenger/internal/services"
)

const maxBodyBytes = 1 << 20

// RegisterRoutes installs middleware and routes on r. store must already be
// initialized; /health reports its active backend.
//
// Middleware runs in this order:
//
//	otelgin          span per request
//	RequestID        X-Request-ID in and out
//	RequestLogger    scoped logger with request, user and route
//	RedactingLogger  one access log per request
//	Recovery         panics become JSON 500s
//	limitBody, gzip
//	Metrics
//	Idempotency      replays answer here and skip everything below
//	RateLimiter      per user or IP; register and login cost more
//	CORS, SecurityHeaders
func RegisterRoutes(r *gin.Engine, store *repo.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RedactingLogger(middleware.RedactOptions{}),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.Metrics(),
	)
	// Scrapes bypass replay, rate limiting and CORS.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200},
			middleware.NewReplayStore(cfg.IdempotencyTTL),
		),
		rateLimiter(cfg).Handler(),
	)
	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		PrivatePrefixes: []string{cfg.APIBasePath},
		EnablePolicy:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": store.Backend()})
	})
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(services.NewUserService(store), services.NewConversationService(store))
	api := groupWithPrefix(r, cfg.APIBasePath)

	api.POST("/users", h.Register)
	api.POST("/sessions", h.Login)
	api.GET("/contacts", h.ListContacts)

	api.GET("/conversations/:peer/messages", h.ListMessages)
	api.POST("/conversations/:peer/messages", h.SendMessage)
	api.PUT("/messages/:id", h.EditMessage)
	api.DELETE("/messages/:id", h.DeleteMessage)
}

// rateLimiter builds the per-identity limiter. Route costs are keyed by the
// full Gin route, so they are joined with the base path here.
func rateLimiter(cfg config.Config) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	for _, route := range []string{"/users", "/sessions"} {
		rl.WithRouteCost(http.MethodPost, path.Join(cfg.APIBasePath, route), cfg.RateAuthCost)
	}
	return rl
}

// corsMiddleware allows every origin when none are configured and otherwise
// echoes allowlisted origins. In both modes Access-Control-Allow-Origin is
// written even on non-preflight requests that gin-contrib/cors would skip.
func corsMiddleware(cc config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-User-ID", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	if len(cc.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Header("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]bool, len(cc.AllowedOrigins))
	for _, o := range cc.AllowedOrigins {
		allowed[o] = true
	}
	base.AllowOrigins = cc.AllowedOrigins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Add("Vary", "Origin")
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
