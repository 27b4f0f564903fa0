package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/So-hel/signalmatrix-repo/internal/analysis"
	"github.com/So-hel/signalmatrix-repo/internal/cache"
	"github.com/So-hel/signalmatrix-repo/internal/database"
	apperrors "github.com/So-hel/signalmatrix-repo/internal/errors"
	"github.com/So-hel/signalmatrix-repo/internal/report"
	"github.com/So-hel/signalmatrix-repo/internal/security"
	"github.com/So-hel/signalmatrix-repo/internal/types"
)

const (
	serviceGitHub    = "github"
	serviceNarrative = "narrative"
	serviceDatabase  = "database"
)

// handleAnalyze collects a live snapshot, scores it, adds the narrative and
// returns the assembled report.
func (s *Server) handleAnalyze(c *gin.Context) {
	req, ok := security.AnalyzeRequestFrom(c)
	if !ok {
		respondError(c, apperrors.NewValidationError("missing analyze request"))
		return
	}

	collector := s.collector
	if token := security.BearerToken(c); token != "" {
		collector = s.forToken(token)
	}

	ctx := c.Request.Context()
	start := time.Now()

	snapshot, err := collector.CollectSnapshot(ctx, req.Username)
	s.health.Record(serviceGitHub, upstreamFailure(err))
	s.metrics.IncrementGitHubCalls()
	s.metrics.RecordExternalAPIRequest(serviceGitHub, err == nil)
	if err != nil {
		s.logger.ExternalAPILogger("GitHub", http.MethodGet, "/users/"+req.Username, statusOf(err), time.Since(start), false)
		respondError(c, analyzeError(req.Username, err))
		return
	}

	score := analysis.Compute(snapshot)
	s.metrics.IncrementAnalysis()

	ai := s.narrator.Generate(ctx, score, req.ResumeText)
	s.metrics.RecordNarrative(ai.Offline())
	if ai.Offline() {
		cache.SkipStore(c)
	}
	if s.narrativeEnabled {
		var narrativeErr error
		if ai.Offline() {
			narrativeErr = errors.New(ai.Error)
		}
		s.health.Record(serviceNarrative, narrativeErr)
	}

	s.store(ctx, req.Username, database.SourceGitHub, score)
	s.logger.AnalysisLogger(req.Username, database.SourceGitHub, score.TotalScore, score.Decision, time.Since(start), ai.Offline())

	c.JSON(http.StatusOK, report.Construct(&score, &ai))
}

// analyzeError maps a collection failure to the messages clients rely on.
func analyzeError(username string, err error) *apperrors.AppError {
	appErr := apperrors.ToAppError(err)
	switch appErr.Category {
	case apperrors.CategoryNotFound:
		return apperrors.NewNotFoundError(fmt.Sprintf("GitHub user '%s' not found.", username), err)
	case apperrors.CategoryAuthentication:
		return apperrors.NewAuthenticationError("Authentication failed. Please verify the GITHUB_TOKEN.", err)
	case apperrors.CategoryRateLimit:
		return appErr
	default:
		return apperrors.NewInternalError("Internal server error during analysis", err)
	}
}

// upstreamFailure filters out errors that say nothing about GitHub's health.
func upstreamFailure(err error) error {
	if err == nil {
		return nil
	}
	switch apperrors.ToAppError(err).Category {
	case apperrors.CategoryNotFound, apperrors.CategoryAuthentication:
		return nil
	}
	return err
}

func statusOf(err error) int {
	return apperrors.ToAppError(err).HTTPStatus
}

// handleScore scores an uploaded snapshot without touching the network.
func (s *Server) handleScore(c *gin.Context) {
	var snapshot analysis.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		respondError(c, apperrors.NewValidationErrorWithMap("invalid snapshot", apperrors.BindingErrors(err)))
		return
	}

	start := time.Now()
	score := analysis.Compute(snapshot.Normalize())
	s.metrics.IncrementAnalysis()

	if login := snapshot.User.Login; security.ValidateUsername(login) == nil {
		s.store(c.Request.Context(), login, database.SourceSnapshot, score)
		s.logger.AnalysisLogger(login, database.SourceSnapshot, score.TotalScore, score.Decision, time.Since(start), true)
	}

	c.JSON(http.StatusOK, score)
}

// store records a run in the history. A failed write is logged and does not
// fail the request.
func (s *Server) store(ctx context.Context, login, source string, score analysis.ScoreBundle) {
	err := s.repo.SaveAnalysis(ctx, database.NewAnalysis(login, source, score))
	s.health.Record(serviceDatabase, err)
	if err != nil {
		slog.Error("Failed to store analysis", "login", login, "source", source, "error", err)
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if err := security.ValidateUsername(username); err != nil {
		respondError(c, apperrors.ToAppError(err))
		return
	}

	limit, err := queryLimit(c, database.DefaultHistoryLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	analyses, err := s.repo.History(c.Request.Context(), username, limit)
	if err != nil {
		respondError(c, apperrors.NewInternalError("Failed to load history", err))
		return
	}

	c.JSON(http.StatusOK, types.HistoryResponse{
		Username: strings.ToLower(username),
		Count:    len(analyses),
		Analyses: analyses,
	})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	period := c.DefaultQuery("period", database.PeriodAllTime)
	since, ok := database.PeriodStart(period, time.Now().UTC())
	if !ok {
		respondError(c, apperrors.NewValidationError(
			fmt.Sprintf("unknown period %q, expected daily, weekly, monthly or all_time", period)))
		return
	}

	limit, err := queryLimit(c, database.DefaultHistoryLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := s.repo.Leaderboard(c.Request.Context(), since, limit)
	if err != nil {
		respondError(c, apperrors.NewInternalError("Failed to load leaderboard", err))
		return
	}

	resp := types.LeaderboardResponse{
		Period:  period,
		Total:   len(entries),
		Entries: entries,
	}
	if !since.IsZero() {
		resp.PeriodStart = &since
	}
	c.JSON(http.StatusOK, resp)
}

// queryLimit parses ?limit=, returning fallback when it is absent. Clamping
// to the maximum happens in the repository.
func queryLimit(c *gin.Context, fallback int) (int, *apperrors.AppError) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.NewValidationError("limit must be a positive integer")
	}
	return limit, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	services := make(map[string]interface{})
	for name, health := range s.health.Snapshot() {
		services[name] = health
	}

	if err := s.db.HealthCheck(c.Request.Context()); err != nil {
		services["sqlite"] = gin.H{"status": "unavailable", "error": err.Error()}
		status, code = "degraded", http.StatusServiceUnavailable
	} else {
		services["sqlite"] = gin.H{"status": "ok"}
	}
	if !s.health.Healthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, types.HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   version,
		Services:  services,
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":      s.metrics.GetStats(),
		"compression":  s.compression.GetStats(),
		"rate_limiter": s.limiter.GetStats(),
		"cache":        s.cache.Stats(),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}
