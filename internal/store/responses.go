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

// CreateResponse inserts a submitted answer.
func (s *SQLStore) CreateResponse(ctx context.Context, r *domain.UserResponse) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO user_responses (
			id, question_id, session_id, user_id, answer, is_correct, time_spent, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, query,
		r.ID, r.QuestionID, r.SessionID, r.UserID, r.Answer,
		boolInt(r.IsCorrect), r.TimeSpent, toMillis(r.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

const responseColumns = `r.id, r.question_id, r.session_id, r.user_id, r.answer, r.is_correct, r.time_spent, r.submitted_at`

func scanResponseInto(r *domain.UserResponse, isCorrect *int, submittedAt *int64) []any {
	return []any{&r.ID, &r.QuestionID, &r.SessionID, &r.UserID, &r.Answer, isCorrect, &r.TimeSpent, submittedAt}
}

// GetResponse retrieves a response together with the question it answers.
func (s *SQLStore) GetResponse(ctx context.Context, responseID string) (*domain.UserResponse, *domain.Question, error) {
	row := s.queryRow(ctx, `
		SELECT `+responseColumns+`,
		       q.id, q.session_id, q.user_id, q.agent_type, q.question_type, q.question_text, q.options,
		       q.correct_answer, q.explanation, q.difficulty_level, q.points, q.metadata, q.created_at
		FROM user_responses r
		JOIN questions q ON q.id = r.question_id
		WHERE r.id = ?`, responseID)

	var resp domain.UserResponse
	var isCorrect int
	var submittedAt int64
	var q domain.Question
	var agentType, questionType, metadata string
	var options sql.NullString
	var createdAt int64

	dest := scanResponseInto(&resp, &isCorrect, &submittedAt)
	dest = append(dest, &q.ID, &q.SessionID, &q.UserID, &agentType, &questionType, &q.QuestionText, &options,
		&q.CorrectAnswer, &q.Explanation, &q.DifficultyLevel, &q.Points, &metadata, &createdAt)

	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan response: %w", err)
	}

	resp.IsCorrect = isCorrect != 0
	resp.SubmittedAt = fromMillis(submittedAt)

	q.AgentType = domain.StageTag(agentType)
	q.QuestionType = domain.QuestionType(questionType)
	q.CreatedAt = fromMillis(createdAt)
	if options.Valid {
		if err := unmarshalJSON(options.String, &q.Options); err != nil {
			return nil, nil, err
		}
	}
	if err := unmarshalJSON(metadata, &q.Metadata); err != nil {
		return nil, nil, err
	}
	return &resp, &q, nil
}

// ListPriorResponses returns a principal's responses in a session other than
// excludeID, oldest first.
func (s *SQLStore) ListPriorResponses(ctx context.Context, userID, sessionID, excludeID string) ([]*domain.UserResponse, error) {
	rows, err := s.query(ctx, `
		SELECT `+responseColumns+`
		FROM user_responses r
		WHERE r.user_id = ? AND r.session_id = ? AND r.id <> ?
		ORDER BY r.submitted_at, r.id`, userID, sessionID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query prior responses: %w", err)
	}
	defer closeRows(rows, "prior responses")

	responses := []*domain.UserResponse{}
	for rows.Next() {
		var resp domain.UserResponse
		var isCorrect int
		var submittedAt int64
		if err := rows.Scan(scanResponseInto(&resp, &isCorrect, &submittedAt)...); err != nil {
			return nil, fmt.Errorf("scan response row: %w", err)
		}
		resp.IsCorrect = isCorrect != 0
		resp.SubmittedAt = fromMillis(submittedAt)
		responses = append(responses, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prior responses: %w", err)
	}
	return responses, nil
}

// CreateFeedback inserts an evaluation.
func (s *SQLStore) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	strengths, err := marshalJSON(f.Strengths, "[]")
	if err != nil {
		return err
	}
	improvements, err := marshalJSON(f.Improvements, "[]")
	if err != nil {
		return err
	}
	nextSteps, err := marshalJSON(f.NextSteps, "[]")
	if err != nil {
		return err
	}
	path, err := marshalJSON(f.LearningPathRecommendations, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO feedback (
			id, response_id, user_id, agent_type, feedback_text, score,
			strengths, improvements, next_steps, learning_path_recommendations,
			fallback, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.exec(ctx, query,
		f.ID, f.ResponseID, f.UserID, string(f.AgentType), f.FeedbackText, f.Score,
		strengths, improvements, nextSteps, path, boolInt(f.Fallback), toMillis(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns the evaluations recorded for a response, newest first.
func (s *SQLStore) ListFeedback(ctx context.Context, responseID string) ([]*domain.Feedback, error) {
	rows, err := s.query(ctx, `
		SELECT id, response_id, user_id, agent_type, feedback_text, score,
		       strengths, improvements, next_steps, learning_path_recommendations,
		       fallback, created_at
		FROM feedback WHERE response_id = ?
		ORDER BY created_at DESC, id`, responseID)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer closeRows(rows, "feedback")

	out := []*domain.Feedback{}
	for rows.Next() {
		var f domain.Feedback
		var agentType, strengths, improvements, nextSteps, path string
		var fallback int
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.ResponseID, &f.UserID, &agentType, &f.FeedbackText, &f.Score,
			&strengths, &improvements, &nextSteps, &path, &fallback, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		f.AgentType = domain.StageTag(agentType)
		f.Fallback = fallback != 0
		f.CreatedAt = fromMillis(createdAt)
		for _, col := range []struct {
			raw string
			dst any
		}{
			{strengths, &f.Strengths},
			{improvements, &f.Improvements},
			{nextSteps, &f.NextSteps},
			{path, &f.LearningPathRecommendations},
		} {
			if err := unmarshalJSON(col.raw, col.dst); err != nil {
				return nil, err
			}
		}
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}
