package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/So-hel/signalmatrix-repo/internal/adapters"
	"github.com/So-hel/signalmatrix-repo/internal/cache"
	"github.com/So-hel/signalmatrix-repo/internal/config"
	"github.com/So-hel/signalmatrix-repo/internal/database"
	"github.com/So-hel/signalmatrix-repo/internal/middleware"
	"github.com/So-hel/signalmatrix-repo/internal/monitoring"
	"github.com/So-hel/signalmatrix-repo/internal/narrative"
	"github.com/So-hel/signalmatrix-repo/internal/ratelimit"
	"github.com/So-hel/signalmatrix-repo/internal/resilience"
	"github.com/So-hel/signalmatrix-repo/internal/security"
)

const retentionInterval = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLogger(cfg.LogLevel)
	slog.SetDefault(appLogger.Logger)
	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := database.NewRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory rate limiting", "addr", cfg.RedisAddr, "error", err)
	}
	defer redisClient.Close()

	appMetrics := monitoring.NewMetrics()

	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPLimitPerMin = cfg.RateLimitPerMin
	limiter := ratelimit.NewRateLimiter(redisClient, limiterConfig, appMetrics)
	defer limiter.Close()

	githubAdapter := adapters.NewGitHubAdapter(cfg.GitHubToken, adapters.WithBaseURL(cfg.GitHubAPIURL))
	defer githubAdapter.Close()

	narrativeConfig := cfg.Narrative()
	generator, narrativeErr := narrative.New(ctx, narrativeConfig)
	if narrativeErr != nil {
		slog.Warn("Narrative provider unavailable, reports will use the fallback narrative",
			"provider", narrativeConfig.Provider, "error", narrativeErr)
	}

	for _, setting := range cfg.Summary() {
		slog.Debug("Configuration", "key", setting[0], "value", setting[1])
	}

	forToken := func(token string) snapshotCollector {
		return githubAdapter.WithToken(token)
	}

	srv := &Server{
		collector:        githubAdapter,
		forToken:         forToken,
		narrator:         generator,
		narrativeEnabled: narrativeConfig.APIKey != "" && narrativeErr == nil,
		db:               db,
		repo:             repo,
		cache:            cache.NewCache(cfg.CacheSize, cfg.CacheTTL),
		limiter:          limiter,
		metrics:          appMetrics,
		logger:           appLogger,
		health:           resilience.NewDegradationManager(resilience.DefaultDegradationConfig()),
		security:         security.NewSecurityMiddleware(security.DefaultSecurityConfig()),
		compression:      middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		poolStats:        githubAdapter.GetPoolStats,
		allowedOrigins:   cfg.AllowedOrigins,
	}

	go runRetention(ctx, repo, cfg.HistoryRetention)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server",
			"port", cfg.Port,
			"ai_provider", narrativeConfig.Provider,
			"redis_enabled", redisClient.IsEnabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// runRetention prunes stored analyses older than retention once at start and
// then daily.
func runRetention(ctx context.Context, repo *database.Repository, retention time.Duration) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		pruneOnce(ctx, repo, retention)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneOnce(ctx context.Context, repo *database.Repository, retention time.Duration) {
	removed, err := repo.PruneBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		slog.Error("Failed to prune analysis history", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("Pruned analysis history", "removed", removed, "retention", retention.String())
	}
}
