package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"go.uber.org/zap"

	"github.com/sujalbistaa/allgood/internal/metrics"
)

const limiterSweepInterval = 10 * time.Minute

type Options struct {
	CorsOrigin string
	AdminToken string
	Metrics    metrics.Provider
	// PostRate and PostBurst limit post creation per client IP. Zero
	// values use one post every 3 seconds.
	PostRate  rate.Limit
	PostBurst int
}

// SetupRoutes configures all application routes and middleware. The
// limiter sweeper stops with ctx.
func SetupRoutes(ctx context.Context, router *gin.Engine, env *Env, opts Options) {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(false)
	}
	if opts.PostRate == 0 {
		opts.PostRate = defaultPostRPS
	}
	if opts.PostBurst == 0 {
		opts.PostBurst = defaultPostBurst
	}
	if opts.CorsOrigin == "" {
		opts.CorsOrigin = "*"
	}

	// --- Middleware ---
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(env.Log))
	router.Use(MetricsMiddleware(opts.Metrics))
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{opts.CorsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: opts.CorsOrigin != "*",
	}))

	limiter := NewIPRateLimiter(opts.PostRate, opts.PostBurst)
	go limiter.Cleanup(ctx, limiterSweepInterval)

	// --- API Routes ---
	api := router.Group("/api")
	{
		api.POST("/auth/anonymous", env.SignInAnonymously)

		api.GET("/posts", env.GetPosts)
		api.GET("/posts/:id", env.GetPost)
		api.GET("/users/:id/posts", env.GetUserPosts)
		api.GET("/locations", env.GetLocations)

		authed := api.Group("", AuthMiddleware(env.Tokens))
		authed.POST("/posts", RateLimitMiddleware(limiter), env.CreatePost)

		me := authed.Group("/me")
		me.GET("", env.GetMe)
		me.POST("/open", env.RecordOpen)
		me.GET("/eligibility", env.GetEligibility)
		me.PUT("/profile", env.SetupProfile)
		me.PATCH("/avatar", env.UpdateAvatar)
	}

	// --- WebSocket Routes ---
	router.GET("/ws", env.ServeWs)
	router.GET("/ws/me", env.ServeUserWs)

	// --- Operations ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", AdminAuthMiddleware(opts.AdminToken), gin.WrapH(opts.Metrics.Handler()))

	env.Log.Info("routes registered", zap.Int("count", len(router.Routes())))
}
