// Package store provides data persistence interfaces and implementations.
//
// Getters return (nil, nil) when the record does not exist.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/tutorpipe/internal/domain"
)

// ErrNotFound is returned by updates that match no row.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for persisting tutoring pipeline records.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// CreateSubject inserts a subject, assigning ID and CreatedAt when empty.
	CreateSubject(ctx context.Context, subject *domain.Subject) error

	// ListSubjects returns all subjects ordered by name.
	ListSubjects(ctx context.Context) ([]*domain.Subject, error)

	// CreateSession inserts a session, assigning ID and timestamps when empty.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// ListSessions returns a principal's sessions, most recently started first.
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)

	// UpdateSessionStatus sets the lifecycle status. Moving to completed
	// stamps completed_at.
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error

	// UpdateSessionProgress sets progress and status together.
	UpdateSessionProgress(ctx context.Context, sessionID string, progress int, status domain.SessionStatus) error

	// SessionProgress counts distinct answered questions and total questions.
	SessionProgress(ctx context.Context, sessionID string) (answered int, total int, err error)

	// CreateArtifact inserts generated content.
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) error

	// GetArtifact retrieves generated content by ID.
	GetArtifact(ctx context.Context, artifactID string) (*domain.Artifact, error)

	// CreateQuestions inserts a question batch in one transaction.
	CreateQuestions(ctx context.Context, questions []*domain.Question) error

	// GetQuestion retrieves a question by ID.
	GetQuestion(ctx context.Context, questionID string) (*domain.Question, error)

	// ListQuestions returns a session's questions in creation order.
	ListQuestions(ctx context.Context, sessionID string) ([]*domain.Question, error)

	// CreateResponse inserts a submitted answer.
	CreateResponse(ctx context.Context, response *domain.UserResponse) error

	// GetResponse retrieves a response joined with its question.
	GetResponse(ctx context.Context, responseID string) (*domain.UserResponse, *domain.Question, error)

	// ListPriorResponses returns a principal's responses in a session,
	// excluding excludeID.
	ListPriorResponses(ctx context.Context, userID, sessionID, excludeID string) ([]*domain.UserResponse, error)

	// CreateFeedback inserts an evaluation.
	CreateFeedback(ctx context.Context, feedback *domain.Feedback) error

	// ListFeedback returns all evaluations recorded for a response, newest first.
	ListFeedback(ctx context.Context, responseID string) ([]*domain.Feedback, error)

	// CreateAgentMessage appends one inter-stage message.
	CreateAgentMessage(ctx context.Context, msg *domain.AgentMessage) error

	// ListAgentMessages returns a session's message trail in creation order.
	ListAgentMessages(ctx context.Context, sessionID string) ([]*domain.AgentMessage, error)
}
