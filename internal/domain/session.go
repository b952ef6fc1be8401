// Package domain contains the record types shared by the tutoring pipeline.
package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a learning session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionPaused    SessionStatus = "paused"
)

// Valid reports whether s is one of the known lifecycle states.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionPaused:
		return true
	}
	return false
}

// Session identifies one learning engagement owned by a principal.
type Session struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	SubjectID   string        `json:"subject_id"`
	Title       string        `json:"title"`
	Objectives  []string      `json:"objectives"`
	Status      SessionStatus `json:"status"`
	Progress    int           `json:"progress"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// OwnedBy returns true if the session belongs to the given principal.
func (s *Session) OwnedBy(userID string) bool {
	return s != nil && s.UserID == userID
}

// ProgressFor returns the progress percentage for answered out of total
// questions, clamped to [0,100]. A session without questions has no progress.
func ProgressFor(answered, total int) int {
	if total <= 0 || answered <= 0 {
		return 0
	}
	if answered >= total {
		return 100
	}
	return answered * 100 / total
}

// Subject is a catalogue entry a session can be started for.
type Subject struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Category        string    `json:"category,omitempty"`
	Description     string    `json:"description,omitempty"`
	DifficultyLevel int       `json:"difficulty_level"`
	CreatedAt       time.Time `json:"created_at"`
}
