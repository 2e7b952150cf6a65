// Package httpapi wires the ops HTTP transport (Gin): health and metrics,
// the authenticated completion-signal websocket, the swagger UI and the
// operator API under /admin.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: access log with secret scrubbing, request logger in ctx
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//  8. gzip (JSON responses only; /ws is excluded)
//
// /ws and /admin additionally sit behind a per-IP rate limiter; /admin
// requires the static operator token.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/config"
	_ "github.com/tbourn/go-spend-reconciler/internal/http/docs"
	"github.com/tbourn/go-spend-reconciler/internal/http/handlers"
	"github.com/tbourn/go-spend-reconciler/internal/http/middleware"
	"github.com/tbourn/go-spend-reconciler/internal/services"
)

// Deps are the collaborators the routes need.
type Deps struct {
	DB   *gorm.DB
	Ops  handlers.OpsService
	Hub  http.Handler // completion-signal websocket endpoint
	Ping func() error // readiness check; nil means always ready
}

// RegisterRoutes attaches middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsPolicy(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		if deps.Ping != nil {
			if err := deps.Ping(); err != nil {
				handlers.Fail(c, http.StatusServiceUnavailable, "unavailable", "database unreachable")
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())

	if deps.Hub != nil {
		r.GET("/ws", rl.Handler(), gin.WrapH(deps.Hub))
	}

	h := handlers.New(
		&services.AccountService{DB: deps.DB},
		&services.DiscrepancyService{DB: deps.DB},
		deps.Ops,
	)
	idem := middleware.IdempotencyKey(middleware.IdempotencyOptions{MaxLen: 200})

	admin := r.Group("/admin", rl.Handler(), middleware.AdminAuth(cfg.AdminToken))
	{
		admin.PUT("/accounts/:id", h.ConfigureAccount)
		admin.GET("/accounts/:id", h.GetAccount)
		admin.POST("/accounts/:id/costs", idem, h.RequestCosts)
		admin.POST("/accounts/:id/scan", idem, h.RequestScan)
		admin.GET("/accounts/:id/discrepancies", h.ListDiscrepancies)
		admin.PUT("/accounts/:id/discrepancies/:did/status", h.SetDiscrepancyStatus)

		admin.GET("/dead-letters", h.ListDeadLetters)
		admin.GET("/queues", h.ListQueues)
		admin.GET("/jobs", h.ListJobs)
		admin.GET("/jobs/:jid", h.GetJob)
		admin.GET("/schedules", h.ListSchedules)
	}
}

// corsPolicy allows any origin when none are configured, otherwise only the
// allowlist.
func corsPolicy(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAdminToken, middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
