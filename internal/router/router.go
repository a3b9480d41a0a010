package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepstack/mockexam-backend/internal/config"
	"github.com/prepstack/mockexam-backend/internal/handler"
	"github.com/prepstack/mockexam-backend/internal/middleware"
	"github.com/prepstack/mockexam-backend/internal/response"
	"github.com/prepstack/mockexam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Catalog *handler.CatalogHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokenService *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Catalog (JWT) ──────────────────────────────────────────────
	catalogAPI := router.Group("/api/v1/tests")
	catalogAPI.Use(middleware.RequireStudent(tokenService))
	{
		catalogAPI.GET("", handlers.Catalog.ListTests)
	}

	// ─── 2. Attempts (JWT) ─────────────────────────────────────────────
	// Sync is additionally rate limited: it is the chattiest endpoint and a
	// reconnecting client can hammer it in a tight retry loop.
	syncLimiter := middleware.NewRateLimiter(30, time.Minute)

	attemptAPI := router.Group("/api/v1/attempts")
	attemptAPI.Use(middleware.RequireStudent(tokenService))
	{
		attemptAPI.POST("", handlers.Attempt.Start)
		attemptAPI.GET("/:attempt_id", handlers.Attempt.Get)
		attemptAPI.PUT("/:attempt_id/responses", handlers.Attempt.SaveResponse)
		attemptAPI.POST("/:attempt_id/sync", syncLimiter.Middleware(), handlers.Attempt.Sync)
		attemptAPI.POST("/:attempt_id/transition", handlers.Attempt.Transition)
		attemptAPI.POST("/:attempt_id/submit", handlers.Attempt.Submit)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWS(tokenService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
