package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const fileName = "signalmatrix.db"

// DB is the sqlite handle plus the statements prepared at startup.
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool records the pool limits applied to the handle.
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies the pool limits to db.
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (creating if needed) the history database under dataDir.
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, fileName))
}

// Open opens the database file at path and runs migrations.
func Open(path string) (*DB, error) {
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// sqlite serialises writers anyway; a small pool avoids SQLITE_BUSY churn.
	pool := NewConnectionPool(db, 4, 2, 30*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.initPreparedStatements(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	slog.Info("Database initialized", "path", path, "max_open_conns", pool.maxOpenConns)
	return database, nil
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			login TEXT NOT NULL,
			source TEXT NOT NULL,
			total_score INTEGER NOT NULL,
			decision TEXT NOT NULL,
			hiring_risk TEXT NOT NULL,
			bundle TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_login_created ON analyses(login, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_score ON analyses(total_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		stmtInsertAnalysis: `INSERT INTO analyses (id, login, source, total_score, decision, hiring_risk, bundle, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,

		stmtHistory: `SELECT id, login, source, bundle, created_at
			FROM analyses WHERE login = ? ORDER BY created_at DESC, id LIMIT ?`,

		// Best live-GitHub score per login since a cutoff; the latest run wins
		// ties. Uploaded snapshots are unverified and never ranked.
		stmtLeaderboard: `SELECT a.login, a.total_score, a.decision, a.hiring_risk, a.created_at
			FROM analyses a
			WHERE a.source = 'github' AND a.created_at >= ? AND a.id = (
				SELECT b.id FROM analyses b
				WHERE b.login = a.login AND b.source = 'github' AND b.created_at >= ?
				ORDER BY b.total_score DESC, b.created_at DESC, b.id
				LIMIT 1
			)
			ORDER BY a.total_score DESC, a.created_at DESC, a.login
			LIMIT ?`,

		stmtPrune: `DELETE FROM analyses WHERE created_at < ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", name, err)
		}
		db.prepared[name] = stmt
	}
	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the prepared statements and the connection.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
