package types

import (
	"time"

	"github.com/So-hel/signalmatrix-repo/internal/database"
)

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Username   string `json:"username" binding:"required"`
	ResumeText string `json:"resume_text"`
}

// HistoryResponse is the body of GET /api/history/:username.
type HistoryResponse struct {
	Username string              `json:"username"`
	Count    int                 `json:"count"`
	Analyses []database.Analysis `json:"analyses"`
}

// LeaderboardResponse is the body of GET /api/leaderboard.
type LeaderboardResponse struct {
	Period      string                      `json:"period"`
	PeriodStart *time.Time                  `json:"period_start,omitempty"`
	Total       int                         `json:"total"`
	Entries     []database.LeaderboardEntry `json:"entries"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	Services  map[string]interface{} `json:"services"`
}
