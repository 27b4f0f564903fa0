package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	stmtInsertAnalysis = "insert_analysis"
	stmtHistory        = "history"
	stmtLeaderboard    = "leaderboard"
	stmtPrune          = "prune"

	DefaultHistoryLimit = 20
	MaxListLimit        = 100
)

// Repository stores and queries scoring runs.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveAnalysis inserts a run.
func (r *Repository) SaveAnalysis(ctx context.Context, a *Analysis) error {
	bundle, err := json.Marshal(a.Bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement(stmtInsertAnalysis)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		a.ID, a.Login, a.Source, a.Bundle.TotalScore, a.Bundle.Decision, a.Bundle.HiringRisk,
		string(bundle), a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save analysis for %s: %w", a.Login, err)
	}
	return nil
}

// History returns the most recent runs for login, newest first.
func (r *Repository) History(ctx context.Context, login string, limit int) ([]Analysis, error) {
	stmt, err := r.db.GetPreparedStatement(stmtHistory)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, strings.ToLower(login), clampLimit(limit, DefaultHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", login, err)
	}
	defer rows.Close()

	out := make([]Analysis, 0)
	for rows.Next() {
		var (
			a      Analysis
			bundle string
		)
		if err := rows.Scan(&a.ID, &a.Login, &a.Source, &bundle, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(bundle), &a.Bundle); err != nil {
			return nil, fmt.Errorf("decode bundle %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Leaderboard ranks logins by their best run created at or after since.
func (r *Repository) Leaderboard(ctx context.Context, since time.Time, limit int) ([]LeaderboardEntry, error) {
	stmt, err := r.db.GetPreparedStatement(stmtLeaderboard)
	if err != nil {
		return nil, err
	}

	since = since.UTC()
	rows, err := stmt.QueryContext(ctx, since, since, clampLimit(limit, MaxListLimit))
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]LeaderboardEntry, 0)
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Login, &e.TotalScore, &e.Decision, &e.HiringRisk, &e.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneBefore deletes runs created before cutoff and returns how many went.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, err := r.db.GetPreparedStatement(stmtPrune)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune analyses: %w", err)
	}
	return res.RowsAffected()
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, MaxListLimit)
}
