package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/tutorpipe/internal/shared"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"
)

// Dialect selects driver-specific SQL.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements Repository on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for concurrent readers; foreign keys are off by default in SQLite.
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, DialectSQLite)
}

// NewPostgres creates a PostgreSQL-backed repository using the pgx driver.
func NewPostgres(dsn string) (Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, DialectPostgres)
}

// Open creates a repository for the named driver ("sqlite" or "postgres").
func Open(driver, dsn string) (Repository, error) {
	switch Dialect(strings.ToLower(driver)) {
	case DialectSQLite, "":
		return NewSQLite(dsn)
	case DialectPostgres, "pgx":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func newSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		difficulty_level INTEGER NOT NULL DEFAULT 1,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learning_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subject_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		objectives TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'active',
		progress INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		started_at BIGINT,
		completed_at BIGINT,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON learning_sessions(user_id, started_at)`,
	`CREATE TABLE IF NOT EXISTS generated_content (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES learning_sessions(id),
		user_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		content_type TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		difficulty_level INTEGER NOT NULL,
		estimated_read_time INTEGER NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES learning_sessions(id),
		user_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		question_type TEXT NOT NULL,
		question_text TEXT NOT NULL,
		options TEXT,
		correct_answer TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		difficulty_level INTEGER NOT NULL,
		points INTEGER NOT NULL DEFAULT 1,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_session ON questions(session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS user_responses (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL REFERENCES questions(id),
		session_id TEXT NOT NULL REFERENCES learning_sessions(id),
		user_id TEXT NOT NULL,
		answer TEXT NOT NULL,
		is_correct INTEGER NOT NULL DEFAULT 0,
		time_spent INTEGER NOT NULL DEFAULT 0,
		submitted_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_responses_session_user ON user_responses(session_id, user_id)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		response_id TEXT NOT NULL REFERENCES user_responses(id),
		user_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		feedback_text TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		strengths TEXT NOT NULL DEFAULT '[]',
		improvements TEXT NOT NULL DEFAULT '[]',
		next_steps TEXT NOT NULL DEFAULT '[]',
		learning_path_recommendations TEXT NOT NULL DEFAULT '{}',
		fallback INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_response ON feedback(response_id)`,
	`CREATE TABLE IF NOT EXISTS agent_communications (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES learning_sessions(id),
		from_agent TEXT NOT NULL,
		to_agent TEXT NOT NULL,
		message_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'sent',
		created_at BIGINT NOT NULL,
		processed_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_comms_session ON agent_communications(session_id, created_at)`,
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := withRetry(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, s.rebind(query), args...)
		return execErr
	})
	return res, err
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

// withRetry retries fn on busy/locked/serialization errors with exponential
// backoff: 50ms, 100ms, 200ms.
func withRetry(ctx context.Context, fn func() error) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !shared.IsConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("store write conflicted, retrying", "attempt", i+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalJSON(v any, fallback string) (string, error) {
	if v == nil {
		return fallback, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	if string(b) == "null" {
		return fallback, nil
	}
	return string(b), nil
}

func unmarshalJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
