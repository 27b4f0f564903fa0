package main

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/So-hel/signalmatrix-repo/internal/analysis"
	"github.com/So-hel/signalmatrix-repo/internal/cache"
	"github.com/So-hel/signalmatrix-repo/internal/database"
	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/middleware"
	"github.com/So-hel/signalmatrix-repo/internal/monitoring"
	"github.com/So-hel/signalmatrix-repo/internal/narrative"
	"github.com/So-hel/signalmatrix-repo/internal/ratelimit"
	"github.com/So-hel/signalmatrix-repo/internal/resilience"
	"github.com/So-hel/signalmatrix-repo/internal/security"

	_ "github.com/So-hel/signalmatrix-repo/docs"
)

const version = "1.0.0"

// snapshotCollector is the part of the GitHub adapter the handlers use.
type snapshotCollector interface {
	CollectSnapshot(ctx context.Context, login string) (analysis.Snapshot, error)
}

type narrator interface {
	Generate(ctx context.Context, score analysis.ScoreBundle, resumeText string) narrative.Bundle
}

// Server holds everything the HTTP handlers need.
type Server struct {
	collector snapshotCollector
	// forToken returns a collector that authenticates with a caller's token.
	forToken func(token string) snapshotCollector
	narrator narrator
	// narrativeEnabled is false when no provider key is configured; the
	// fallback narrative is then expected and not counted against health.
	narrativeEnabled bool

	db          *database.DB
	repo        *database.Repository
	cache       *cache.Cache
	limiter     *ratelimit.RateLimiter
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
	health      *resilience.DegradationManager
	security    *security.SecurityMiddleware
	compression *middleware.CompressionMiddleware
	poolStats   func() map[string]interface{}

	allowedOrigins []string
}

// Router builds the gin engine with every route and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(apperrors.RecoveryHandler())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(s.compression.Handler())
	r.Use(cors.New(corsConfig(s.allowedOrigins)))
	r.Use(s.security.SecurityHeaders)
	r.Use(s.security.RequestTimeout)
	r.Use(s.security.ValidateContentType)

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.cache.Stats())
	})
	r.GET("/pools/github", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"github":    s.poolStats(),
			"database":  s.db.GetPoolStats(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.Use(s.limiter.IPRateLimitMiddleware())
	{
		api.POST("/analyze",
			s.cache.Middleware("/api/analyze", s.metrics, s.logger),
			s.security.ValidateAnalyzeRequest,
			s.handleAnalyze)
		api.POST("/score", s.handleScore)
		api.GET("/history/:username", s.handleHistory)
		api.GET("/leaderboard", s.handleLeaderboard)
		api.GET("/ratelimit", s.limiter.HandleRateLimitStatus())
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	return config
}

func respondError(c *gin.Context, appErr *apperrors.AppError) {
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
}
