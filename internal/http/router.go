// Package httpapi mounts the webhook ingress and the operator API on a Gin
// engine together with the shared middleware chain.
//
// Middleware order:
//  1. OpenTelemetry span per request
//  2. RequestID
//  3. AccessLog (redacting, puts the request logger on the context)
//  4. Recovery
//  5. Body size cap
//  6. Prometheus metrics
//  7. CORS
//
// The webhook group adds the shared-secret check. The operator API group adds
// gzip, operator authentication and the per-operator rate limiter.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-service-desk/internal/config"
	"github.com/tbourn/go-service-desk/internal/http/handlers"
	"github.com/tbourn/go-service-desk/internal/http/middleware"
)

// maxBody caps webhook and API request bodies.
const maxBody = 1 << 20

// RegisterRoutes attaches middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.LogOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBody))
	r.Use(middleware.Metrics())
	r.Use(cors.New(corsConfig(cfg.CORS)))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	hook := r.Group("/webhook", middleware.WebhookSecret(cfg.WebhookSecret))
	{
		hook.POST("/updates", h.Update)
		hook.POST("/channel-posts", h.ChannelPost)
	}

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOperatorOrIP())
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		gzip.Gzip(gzip.DefaultCompression),
		middleware.APIToken(cfg.OperatorAPIToken),
		middleware.Operator(cfg.IsOperator),
		rl.Handler(),
	)
	{
		api.GET("/stats", h.Stats)

		api.GET("/orders/:code", h.GetOrder)
		api.POST("/orders/:code/complete", h.CompleteOrder)

		api.GET("/posts", h.SearchPosts)

		api.POST("/users/:id/block", h.BlockUser)
		api.POST("/users/:id/unblock", h.UnblockUser)
		api.DELETE("/users/:id", h.DeleteUser)
	}
}

// corsConfig allows every origin when none are configured. Credentials stay
// off in both modes.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderOperatorID, middleware.HeaderAuthorization},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix treats "" and "/" as the engine root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
