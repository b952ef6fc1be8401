package domain

import (
	"strings"
	"time"
)

// Artifact is a piece of generated learning content. It is written once per
// content-stage run and never updated.
type Artifact struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	UserID            string         `json:"user_id"`
	AgentType         StageTag       `json:"agent_type"`
	ContentType       string         `json:"content_type"`
	Title             string         `json:"title"`
	Content           string         `json:"content"`
	DifficultyLevel   int            `json:"difficulty_level"`
	EstimatedReadTime int            `json:"estimated_read_time"`
	Metadata          map[string]any `json:"metadata"`
	CreatedAt         time.Time      `json:"created_at"`
}

// charsPerMinute is the reading speed used for read-time estimates.
const charsPerMinute = 200

// EstimateReadTime returns ceil(n/200) minutes for a body of n characters.
func EstimateReadTime(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + charsPerMinute - 1) / charsPerMinute
}

// QuestionType tags the closed set of question shapes.
type QuestionType string

const (
	// QuestionMCQ carries an ordered option list.
	QuestionMCQ QuestionType = "mcq"
	// QuestionOpen is answered in free text and carries no options.
	QuestionOpen QuestionType = "open"
)

// ParseQuestionType normalizes the spellings the oracle and callers use.
// The second result is false for unrecognized types.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mcq", "multiple choice", "multiple_choice", "multiple-choice":
		return QuestionMCQ, true
	case "open", "open_ended", "open-ended", "essay", "short_answer", "short answer":
		return QuestionOpen, true
	}
	return "", false
}

// Question is one assessment item. Batches are written by the assessment
// stage and never updated.
type Question struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"session_id"`
	UserID          string         `json:"user_id"`
	AgentType       StageTag       `json:"agent_type"`
	QuestionType    QuestionType   `json:"question_type"`
	QuestionText    string         `json:"question_text"`
	Options         []string       `json:"options"`
	CorrectAnswer   string         `json:"correct_answer"`
	Explanation     string         `json:"explanation"`
	DifficultyLevel int            `json:"difficulty_level"`
	Points          int            `json:"points"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
}

// HasOptions returns true for question types that carry an option list.
func (q *Question) HasOptions() bool {
	return q.QuestionType == QuestionMCQ
}

// IsCorrect reports whether answer matches the stored correct answer exactly.
func (q *Question) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}
