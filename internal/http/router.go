// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
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

	"github.com/tbourn/go-debate-backend/internal/config"
	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/http/handlers"
	"github.com/tbourn/go-debate-backend/internal/http/middleware"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/repo"
	"github.com/tbourn/go-debate-backend/internal/services"
)

// debateRepoShim adapts the repository free functions to the
// services.DebateRepo interface expected by the DebateService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type debateRepoShim struct{}

// CreateDebate proxies repo.CreateDebate.
func (debateRepoShim) CreateDebate(ctx context.Context, db *gorm.DB, creatorID, title, topic, description, inviteCode string) (*domain.Debate, error) {
	return repo.CreateDebate(ctx, db, creatorID, title, topic, description, inviteCode)
}

// GetDebate proxies repo.GetDebate.
func (debateRepoShim) GetDebate(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error) {
	return repo.GetDebate(ctx, db, id)
}

// GetDebateDetail proxies repo.GetDebateDetail.
func (debateRepoShim) GetDebateDetail(ctx context.Context, db *gorm.DB, id string) (*domain.Debate, error) {
	return repo.GetDebateDetail(ctx, db, id)
}

// FindDebateByInviteCode proxies repo.FindDebateByInviteCode.
func (debateRepoShim) FindDebateByInviteCode(ctx context.Context, db *gorm.DB, code string) (*domain.Debate, error) {
	return repo.FindDebateByInviteCode(ctx, db, code)
}

// CountDebates proxies repo.CountDebates (pagination support).
func (debateRepoShim) CountDebates(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountDebates(ctx, db, userID)
}

// ListDebatesPage proxies repo.ListDebatesPage (pagination support).
func (debateRepoShim) ListDebatesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Debate, error) {
	return repo.ListDebatesPage(ctx, db, userID, offset, limit)
}

// BindOpponent proxies repo.BindOpponent.
func (debateRepoShim) BindOpponent(ctx context.Context, db *gorm.DB, debateID, userID string) (bool, error) {
	return repo.BindOpponent(ctx, db, debateID, userID)
}

// UpdateDebateStatus proxies repo.UpdateDebateStatus.
func (debateRepoShim) UpdateDebateStatus(ctx context.Context, db *gorm.DB, debateID, from, to string) (bool, error) {
	return repo.UpdateDebateStatus(ctx, db, debateID, from, to)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ai llm.Client, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Transparent response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, debateID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, debateID, key)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/ai
	debateSvc := services.NewDebateService(db, debateRepoShim{})
	msgSvc := &services.MessageService{
		DB:              db,
		MaxContentRunes: cfg.MaxMessageRunes,
	}
	defSvc := &services.DefinitionService{DB: db}
	modSvc := services.NewModerationService(db, ai)
	modSvc.Timeout = cfg.AI.Timeout
	modSvc.MaxTokens = cfg.AI.MaxTokens
	modSvc.Temperature = llm.Temp(cfg.AI.Temperature)
	acctSvc := &services.AccountService{DB: db}

	h := handlers.New(debateSvc, msgSvc, defSvc, modSvc, acctSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Accounts
		api.POST("/register", h.Register)

		// Debates
		api.POST("/debates", h.CreateDebate)
		api.GET("/debates", h.ListDebates)
		api.POST("/debates/join", h.JoinDebate)
		api.GET("/debates/:id", h.GetDebate)
		api.PATCH("/debates/:id/status", h.UpdateDebateStatus)

		// Messages
		api.GET("/debates/:id/messages", h.ListMessages)
		api.POST("/debates/:id/messages", h.PostMessage)

		// Moderation
		api.POST("/debates/:id/messages/:messageID/analysis", h.AnalyzeMessage)

		// Definitions
		api.POST("/debates/:id/definitions", h.ProposeDefinition)
		api.GET("/debates/:id/definitions", h.ListDefinitions)
		api.PATCH("/definitions/:id/status", h.ReviewDefinition)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
