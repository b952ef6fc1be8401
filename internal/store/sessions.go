package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/tutorpipe/internal/domain"
)

// CreateSubject inserts a catalogue subject.
func (s *SQLStore) CreateSubject(ctx context.Context, subject *domain.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO subjects (id, name, category, description, difficulty_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, query,
		subject.ID, subject.Name, subject.Category, subject.Description,
		subject.DifficultyLevel, toMillis(subject.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// ListSubjects returns every subject ordered by name.
func (s *SQLStore) ListSubjects(ctx context.Context) ([]*domain.Subject, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, category, description, difficulty_level, created_at
		FROM subjects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer closeRows(rows, "subjects")

	subjects := []*domain.Subject{}
	for rows.Next() {
		var sub domain.Subject
		var createdAt int64
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Category, &sub.Description,
			&sub.DifficultyLevel, &createdAt); err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}
		sub.CreatedAt = fromMillis(createdAt)
		subjects = append(subjects, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// CreateSession inserts a learning session.
func (s *SQLStore) CreateSession(ctx context.Context, session *domain.Session) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = domain.SessionActive
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.StartedAt == nil {
		started := session.CreatedAt
		session.StartedAt = &started
	}
	session.UpdatedAt = now

	objectives, err := marshalJSON(session.Objectives, "[]")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO learning_sessions (
			id, user_id, subject_id, title, objectives, status, progress,
			created_at, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.exec(ctx, query,
		session.ID, session.UserID, session.SubjectID, session.Title, objectives,
		string(session.Status), session.Progress,
		toMillis(session.CreatedAt), nullMillis(session.StartedAt),
		nullMillis(session.CompletedAt), toMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `
	id, user_id, subject_id, title, objectives, status, progress,
	created_at, started_at, completed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var objectives, status string
	var createdAt, updatedAt int64
	var startedAt, completedAt sql.NullInt64

	if err := row.Scan(
		&session.ID, &session.UserID, &session.SubjectID, &session.Title,
		&objectives, &status, &session.Progress,
		&createdAt, &startedAt, &completedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	session.Status = domain.SessionStatus(status)
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	session.StartedAt = timePtr(startedAt)
	session.CompletedAt = timePtr(completedAt)
	if err := unmarshalJSON(objectives, &session.Objectives); err != nil {
		return nil, err
	}
	if session.Objectives == nil {
		session.Objectives = []string{}
	}
	return &session, nil
}

// GetSession retrieves a session by ID.
func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.queryRow(ctx, `SELECT `+sessionColumns+` FROM learning_sessions WHERE id = ?`, sessionID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return session, nil
}

// ListSessions returns a principal's sessions, most recently started first.
func (s *SQLStore) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := s.query(ctx, `SELECT `+sessionColumns+`
		FROM learning_sessions WHERE user_id = ?
		ORDER BY started_at DESC, created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer closeRows(rows, "sessions")

	sessions := []*domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSessionStatus sets the lifecycle status of a session.
func (s *SQLStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	now := time.Now().UTC()
	var completedAt any
	if status == domain.SessionCompleted {
		completedAt = toMillis(now)
	}

	query := `
		UPDATE learning_sessions
		SET status = ?, completed_at = COALESCE(?, completed_at), updated_at = ?
		WHERE id = ?`
	return s.updateSession(ctx, "UpdateSessionStatus", query,
		string(status), completedAt, toMillis(now), sessionID)
}

// UpdateSessionProgress sets progress and status together. Any status other
// than completed clears completed_at.
func (s *SQLStore) UpdateSessionProgress(ctx context.Context, sessionID string, progress int, status domain.SessionStatus) error {
	now := time.Now().UTC()
	if status != domain.SessionCompleted {
		query := `
			UPDATE learning_sessions
			SET progress = ?, status = ?, completed_at = NULL, updated_at = ?
			WHERE id = ?`
		return s.updateSession(ctx, "UpdateSessionProgress", query,
			progress, string(status), toMillis(now), sessionID)
	}

	query := `
		UPDATE learning_sessions
		SET progress = ?, status = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ?`
	return s.updateSession(ctx, "UpdateSessionProgress", query,
		progress, string(status), toMillis(now), toMillis(now), sessionID)
}

func (s *SQLStore) updateSession(ctx context.Context, op, query string, args ...any) error {
	result, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn(op+" affected 0 rows", "session_id", args[len(args)-1])
		return ErrNotFound
	}
	return nil
}

// SessionProgress counts distinct answered questions and total questions in
// a session.
func (s *SQLStore) SessionProgress(ctx context.Context, sessionID string) (int, int, error) {
	var answered, total int
	row := s.queryRow(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT question_id) FROM user_responses WHERE session_id = ?),
			(SELECT COUNT(*) FROM questions WHERE session_id = ?)`,
		sessionID, sessionID)
	if err := row.Scan(&answered, &total); err != nil {
		return 0, 0, fmt.Errorf("count session progress: %w", err)
	}
	return answered, total, nil
}
