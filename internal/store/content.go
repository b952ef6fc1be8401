package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/tutorpipe/internal/domain"
)

// CreateArtifact inserts generated content.
func (s *SQLStore) CreateArtifact(ctx context.Context, a *domain.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	metadata, err := marshalJSON(a.Metadata, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO generated_content (
			id, session_id, user_id, agent_type, content_type, title, content,
			difficulty_level, estimated_read_time, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.exec(ctx, query,
		a.ID, a.SessionID, a.UserID, string(a.AgentType), a.ContentType, a.Title, a.Content,
		a.DifficultyLevel, a.EstimatedReadTime, metadata, toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert generated content: %w", err)
	}
	return nil
}

// GetArtifact retrieves generated content by ID.
func (s *SQLStore) GetArtifact(ctx context.Context, artifactID string) (*domain.Artifact, error) {
	row := s.queryRow(ctx, `
		SELECT id, session_id, user_id, agent_type, content_type, title, content,
		       difficulty_level, estimated_read_time, metadata, created_at
		FROM generated_content WHERE id = ?`, artifactID)

	var a domain.Artifact
	var agentType, metadata string
	var createdAt int64
	err := row.Scan(&a.ID, &a.SessionID, &a.UserID, &agentType, &a.ContentType, &a.Title, &a.Content,
		&a.DifficultyLevel, &a.EstimatedReadTime, &metadata, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan generated content: %w", err)
	}

	a.AgentType = domain.StageTag(agentType)
	a.CreatedAt = fromMillis(createdAt)
	if err := unmarshalJSON(metadata, &a.Metadata); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateQuestions inserts a question batch in one transaction. Either every
// question is stored or none is.
func (s *SQLStore) CreateQuestions(ctx context.Context, questions []*domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i, q := range questions {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.CreatedAt.IsZero() {
			// Keep batch order stable under ORDER BY created_at.
			q.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		}
	}

	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin question batch: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, s.rebind(`
			INSERT INTO questions (
				id, session_id, user_id, agent_type, question_type, question_text, options,
				correct_answer, explanation, difficulty_level, points, metadata, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare question insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, q := range questions {
			var options any
			if q.HasOptions() {
				encoded, err := marshalJSON(q.Options, "[]")
				if err != nil {
					return err
				}
				options = encoded
			}
			metadata, err := marshalJSON(q.Metadata, "{}")
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				q.ID, q.SessionID, q.UserID, string(q.AgentType), string(q.QuestionType), q.QuestionText,
				options, q.CorrectAnswer, q.Explanation, q.DifficultyLevel, q.Points, metadata,
				toMillis(q.CreatedAt),
			); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit question batch: %w", err)
		}
		return nil
	})
}

const questionColumns = `
	id, session_id, user_id, agent_type, question_type, question_text, options,
	correct_answer, explanation, difficulty_level, points, metadata, created_at`

func scanQuestion(row rowScanner) (*domain.Question, error) {
	var q domain.Question
	var agentType, questionType, metadata string
	var options sql.NullString
	var createdAt int64

	if err := row.Scan(&q.ID, &q.SessionID, &q.UserID, &agentType, &questionType, &q.QuestionText,
		&options, &q.CorrectAnswer, &q.Explanation, &q.DifficultyLevel, &q.Points, &metadata,
		&createdAt); err != nil {
		return nil, err
	}

	q.AgentType = domain.StageTag(agentType)
	q.QuestionType = domain.QuestionType(questionType)
	q.CreatedAt = fromMillis(createdAt)
	if options.Valid {
		if err := unmarshalJSON(options.String, &q.Options); err != nil {
			return nil, err
		}
	}
	if err := unmarshalJSON(metadata, &q.Metadata); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuestion retrieves a question by ID.
func (s *SQLStore) GetQuestion(ctx context.Context, questionID string) (*domain.Question, error) {
	q, err := scanQuestion(s.queryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, questionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan question: %w", err)
	}
	return q, nil
}

// ListQuestions returns a session's questions in creation order.
func (s *SQLStore) ListQuestions(ctx context.Context, sessionID string) ([]*domain.Question, error) {
	rows, err := s.query(ctx, `SELECT `+questionColumns+`
		FROM questions WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer closeRows(rows, "questions")

	questions := []*domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question row: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}
